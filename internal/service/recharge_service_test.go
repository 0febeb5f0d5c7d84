package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/internal/core/ports/mocks"
	"sevapay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type rechargeTestDeps struct {
	svc          *RechargeServiceImpl
	orderRepo    *mocks.MockRechargeOrderRepository
	operatorRepo *mocks.MockOperatorRepository
	walletSvc    *mocks.MockWalletService
	aggregator   *mocks.MockAggregatorClient
	planCache    *mocks.MockPlanCache
	ctrl         *gomock.Controller
}

func setupRechargeService(t *testing.T) *rechargeTestDeps {
	ctrl := gomock.NewController(t)
	d := &rechargeTestDeps{
		orderRepo:    mocks.NewMockRechargeOrderRepository(ctrl),
		operatorRepo: mocks.NewMockOperatorRepository(ctrl),
		walletSvc:    mocks.NewMockWalletService(ctrl),
		aggregator:   mocks.NewMockAggregatorClient(ctrl),
		planCache:    mocks.NewMockPlanCache(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewRechargeService(
		d.orderRepo, d.operatorRepo, d.walletSvc, d.aggregator, d.planCache,
		10*time.Minute, 50, zerolog.Nop(),
	)
	return d
}

func prepaidOperator() *domain.Operator {
	return &domain.Operator{
		Code:          "AIRTEL",
		Name:          "Airtel",
		ServiceType:   domain.ServiceTypePrepaid,
		MinAmount:     1000,
		MaxAmount:     1000000,
		CommissionBps: 200,
		CashbackBps:   50,
	}
}

func purchaseReq() ports.PurchaseRequest {
	return ports.PurchaseRequest{
		PurchaserID:  uuid.New(),
		Role:         domain.RoleRetailer,
		ServiceType:  domain.ServiceTypePrepaid,
		OperatorCode: "AIRTEL",
		TargetNumber: "9876543210",
		Amount:       19900,
	}
}

// ==================== Purchase ====================

func TestRechargeService_Purchase_Success(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := purchaseReq()
	op := prepaidOperator()
	entryID := uuid.New()
	aggRef := "AGG-777"

	var order *domain.RechargeOrder

	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(op, nil)
	d.walletSvc.EXPECT().Balance(ctx, req.PurchaserID).Return(int64(100000), nil)
	d.orderRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, o *domain.RechargeOrder) error {
			order = o
			return nil
		})
	// Debit commits before the aggregator hand-off
	d.walletSvc.EXPECT().Debit(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, m ports.WalletMutation) (*domain.LedgerEntry, error) {
			assert.Equal(t, req.PurchaserID, m.OwnerID)
			assert.Equal(t, domain.EntryKindRecharge, m.Kind)
			assert.Equal(t, int64(19900), m.Amount)
			assert.Equal(t, "ORD-"+order.ID.String(), m.Reference)
			return &domain.LedgerEntry{ID: entryID, OwnerID: m.OwnerID, Amount: m.Amount}, nil
		})
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusInitiated, domain.OrderStatusDebited, nil).Return(true, nil)
	d.orderRepo.EXPECT().SetLedgerEntry(ctx, gomock.Any(), entryID).Return(nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusDebited, domain.OrderStatusSubmitted, nil).Return(true, nil)
	d.aggregator.EXPECT().Submit(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, sr ports.AggregatorSubmitRequest) (*ports.AggregatorResult, error) {
			assert.Equal(t, order.ID, sr.OrderID)
			assert.Equal(t, "AIRTEL", sr.OperatorCode)
			assert.Equal(t, int64(19900), sr.Amount)
			return &ports.AggregatorResult{Status: ports.AggregatorStatusSuccess, Ref: aggRef}, nil
		})
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusSubmitted, domain.OrderStatusSuccess, &aggRef).Return(true, nil)
	// Reward payout reloads the order and operator
	d.orderRepo.EXPECT().GetByID(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID) (*domain.RechargeOrder, error) {
			done := *order
			done.Status = domain.OrderStatusSuccess
			done.AggregatorRef = &aggRef
			return &done, nil
		}).Times(2)
	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(op, nil)
	// 19900 * 200bps = 398 commission for the retailer
	d.walletSvc.EXPECT().Credit(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, m ports.WalletMutation) (*domain.LedgerEntry, error) {
			assert.Equal(t, domain.EntryKindCommission, m.Kind)
			assert.Equal(t, int64(398), m.Amount)
			assert.Equal(t, "RWD-"+order.ID.String(), m.Reference)
			return &domain.LedgerEntry{ID: uuid.New(), Amount: m.Amount}, nil
		})

	result, err := d.svc.Purchase(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSuccess, result.Status)
	require.NotNil(t, result.AggregatorRef)
	assert.Equal(t, aggRef, *result.AggregatorRef)
}

func TestRechargeService_Purchase_FailureRefundsDebit(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := purchaseReq()
	entryID := uuid.New()

	var order *domain.RechargeOrder

	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)
	d.walletSvc.EXPECT().Balance(ctx, req.PurchaserID).Return(int64(100000), nil)
	d.orderRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, o *domain.RechargeOrder) error {
			order = o
			return nil
		})
	d.walletSvc.EXPECT().Debit(ctx, gomock.Any()).Return(&domain.LedgerEntry{ID: entryID}, nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusInitiated, domain.OrderStatusDebited, nil).Return(true, nil)
	d.orderRepo.EXPECT().SetLedgerEntry(ctx, gomock.Any(), entryID).Return(nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusDebited, domain.OrderStatusSubmitted, nil).Return(true, nil)
	d.aggregator.EXPECT().Submit(ctx, gomock.Any()).Return(
		&ports.AggregatorResult{Status: ports.AggregatorStatusFailed}, nil)
	// The held debit flows back before the order turns FAILED, so FAILED
	// always means the money is back
	gomock.InOrder(
		d.walletSvc.EXPECT().Refund(ctx, gomock.Any(), "recharge failed").DoAndReturn(
			func(_ context.Context, ref, _ string) (*domain.LedgerEntry, error) {
				assert.Equal(t, "ORD-"+order.ID.String(), ref)
				return &domain.LedgerEntry{ID: uuid.New(), Amount: 19900}, nil
			}),
		d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusSubmitted, domain.OrderStatusFailed, nil).Return(true, nil),
	)
	d.orderRepo.EXPECT().GetByID(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID) (*domain.RechargeOrder, error) {
			done := *order
			done.Status = domain.OrderStatusFailed
			return &done, nil
		})

	result, err := d.svc.Purchase(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, result.Status)
}

func TestRechargeService_Purchase_RefundFailureParksOrder(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := purchaseReq()
	entryID := uuid.New()

	var order *domain.RechargeOrder

	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)
	d.walletSvc.EXPECT().Balance(ctx, req.PurchaserID).Return(int64(100000), nil)
	d.orderRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, o *domain.RechargeOrder) error {
			order = o
			return nil
		})
	d.walletSvc.EXPECT().Debit(ctx, gomock.Any()).Return(&domain.LedgerEntry{ID: entryID}, nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusInitiated, domain.OrderStatusDebited, nil).Return(true, nil)
	d.orderRepo.EXPECT().SetLedgerEntry(ctx, gomock.Any(), entryID).Return(nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusDebited, domain.OrderStatusSubmitted, nil).Return(true, nil)
	d.aggregator.EXPECT().Submit(ctx, gomock.Any()).Return(
		&ports.AggregatorResult{Status: ports.AggregatorStatusFailed}, nil)
	// The refund cannot be applied, so the order must not reach FAILED.
	// It parks in PENDING_CONFIRMATION for the sweep to retry.
	d.walletSvc.EXPECT().Refund(ctx, gomock.Any(), "recharge failed").Return(nil,
		apperror.InternalError(context.DeadlineExceeded))
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusSubmitted, domain.OrderStatusPendingConfirmation, nil).Return(true, nil)
	d.orderRepo.EXPECT().GetByID(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID) (*domain.RechargeOrder, error) {
			held := *order
			held.Status = domain.OrderStatusPendingConfirmation
			return &held, nil
		})

	result, err := d.svc.Purchase(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPendingConfirmation, result.Status)
}

func TestRechargeService_Purchase_AggregatorUnreachableHoldsFunds(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := purchaseReq()
	entryID := uuid.New()

	var order *domain.RechargeOrder

	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)
	d.walletSvc.EXPECT().Balance(ctx, req.PurchaserID).Return(int64(100000), nil)
	d.orderRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, o *domain.RechargeOrder) error {
			order = o
			return nil
		})
	d.walletSvc.EXPECT().Debit(ctx, gomock.Any()).Return(&domain.LedgerEntry{ID: entryID}, nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusInitiated, domain.OrderStatusDebited, nil).Return(true, nil)
	d.orderRepo.EXPECT().SetLedgerEntry(ctx, gomock.Any(), entryID).Return(nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusDebited, domain.OrderStatusSubmitted, nil).Return(true, nil)
	// Timeout: the recharge may or may not have executed
	d.aggregator.EXPECT().Submit(ctx, gomock.Any()).Return(nil,
		apperror.ErrExternalServiceUnavailable(context.DeadlineExceeded))
	// No refund: the funds stay held until a webhook or the sweep decides
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusSubmitted, domain.OrderStatusPendingConfirmation, nil).Return(true, nil)
	d.orderRepo.EXPECT().GetByID(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID) (*domain.RechargeOrder, error) {
			held := *order
			held.Status = domain.OrderStatusPendingConfirmation
			return &held, nil
		})

	result, err := d.svc.Purchase(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPendingConfirmation, result.Status)
}

func TestRechargeService_Purchase_DebitFailureFailsOrder(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := purchaseReq()

	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)
	// Advisory check passes, but the authoritative locked debit loses to a
	// concurrent spender
	d.walletSvc.EXPECT().Balance(ctx, req.PurchaserID).Return(int64(19900), nil)
	d.orderRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.walletSvc.EXPECT().Debit(ctx, gomock.Any()).Return(nil, apperror.ErrInsufficientBalance())
	d.orderRepo.EXPECT().TransitionStatus(ctx, gomock.Any(), domain.OrderStatusInitiated, domain.OrderStatusFailed, nil).Return(true, nil)

	result, err := d.svc.Purchase(ctx, req)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_001")
}

func TestRechargeService_Purchase_InsufficientBalancePreCheck(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := purchaseReq()

	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)
	d.walletSvc.EXPECT().Balance(ctx, req.PurchaserID).Return(int64(100), nil)
	// No order is created for an obviously unfunded purchase

	result, err := d.svc.Purchase(ctx, req)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_001")
}

func TestRechargeService_Purchase_WrongServiceType(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := purchaseReq()
	req.ServiceType = domain.ServiceTypeDTH

	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)

	result, err := d.svc.Purchase(ctx, req)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_002")
}

func TestRechargeService_Purchase_AmountOutOfBounds(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := purchaseReq()
	req.Amount = 500 // below the operator's minimum

	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)

	result, err := d.svc.Purchase(ctx, req)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_002")
}

func TestRechargeService_Purchase_UnknownOperator(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.operatorRepo.EXPECT().GetByCode(ctx, "NOPE").Return(nil, nil)

	req := purchaseReq()
	req.OperatorCode = "NOPE"
	result, err := d.svc.Purchase(ctx, req)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_004")
}

// ==================== Confirm ====================

func TestRechargeService_Confirm_ResolvesPendingOrder(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	order := domain.NewRechargeOrder(uuid.New(), domain.RoleCustomer,
		domain.ServiceTypePrepaid, "AIRTEL", nil, "9876543210", 10000)
	order.Status = domain.OrderStatusPendingConfirmation
	aggRef := "AGG-123"
	op := prepaidOperator()

	d.orderRepo.EXPECT().GetByID(ctx, order.ID).Return(order, nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, order.ID, domain.OrderStatusPendingConfirmation, domain.OrderStatusSuccess, &aggRef).Return(true, nil)
	resolved := *order
	resolved.Status = domain.OrderStatusSuccess
	resolved.AggregatorRef = &aggRef
	d.orderRepo.EXPECT().GetByID(ctx, order.ID).Return(&resolved, nil).Times(2)
	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(op, nil)
	// Customer cashback: 10000 * 50bps = 50
	d.walletSvc.EXPECT().Credit(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, m ports.WalletMutation) (*domain.LedgerEntry, error) {
			assert.Equal(t, domain.EntryKindCashback, m.Kind)
			assert.Equal(t, int64(50), m.Amount)
			return &domain.LedgerEntry{ID: uuid.New(), Amount: m.Amount}, nil
		})

	result, err := d.svc.Confirm(ctx, ports.ConfirmRequest{
		OrderID:       order.ID,
		Status:        ports.AggregatorStatusSuccess,
		AggregatorRef: aggRef,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSuccess, result.Status)
}

func TestRechargeService_Confirm_TerminalOrderIsNoOp(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	order := domain.NewRechargeOrder(uuid.New(), domain.RoleRetailer,
		domain.ServiceTypePrepaid, "AIRTEL", nil, "9876543210", 10000)
	order.Status = domain.OrderStatusSuccess

	// Redelivered webhook: no transitions, no money
	d.orderRepo.EXPECT().GetByID(ctx, order.ID).Return(order, nil)

	result, err := d.svc.Confirm(ctx, ports.ConfirmRequest{
		OrderID: order.ID,
		Status:  ports.AggregatorStatusSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSuccess, result.Status)
}

func TestRechargeService_Confirm_NotAwaitingConfirmation(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	order := domain.NewRechargeOrder(uuid.New(), domain.RoleRetailer,
		domain.ServiceTypePrepaid, "AIRTEL", nil, "9876543210", 10000)

	d.orderRepo.EXPECT().GetByID(ctx, order.ID).Return(order, nil)

	result, err := d.svc.Confirm(ctx, ports.ConfirmRequest{
		OrderID: order.ID,
		Status:  ports.AggregatorStatusSuccess,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "APP_001")
}

func TestRechargeService_Confirm_UnknownOrder(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	d.orderRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	result, err := d.svc.Confirm(ctx, ports.ConfirmRequest{OrderID: id})
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_004")
}

// ==================== ResolvePending ====================

func TestRechargeService_ResolvePending(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	// Admin purchases earn no reward, which keeps the sweep free of credits
	stale1 := domain.NewRechargeOrder(uuid.New(), domain.RoleAdmin,
		domain.ServiceTypePrepaid, "AIRTEL", nil, "9876543210", 10000)
	stale1.Status = domain.OrderStatusPendingConfirmation
	stale2 := domain.NewRechargeOrder(uuid.New(), domain.RoleAdmin,
		domain.ServiceTypePrepaid, "AIRTEL", nil, "9876543211", 20000)
	stale2.Status = domain.OrderStatusPendingConfirmation
	aggRef := "AGG-re-1"

	d.orderRepo.EXPECT().ListPendingConfirmation(ctx, gomock.Any(), 50).
		Return([]domain.RechargeOrder{*stale1, *stale2}, nil)
	// First order resolved successfully
	d.aggregator.EXPECT().CheckStatus(ctx, stale1.ID).Return(
		&ports.AggregatorResult{Status: ports.AggregatorStatusSuccess, Ref: aggRef}, nil)
	d.orderRepo.EXPECT().TransitionStatus(ctx, stale1.ID, domain.OrderStatusPendingConfirmation, domain.OrderStatusSuccess, &aggRef).Return(true, nil)
	done := *stale1
	done.Status = domain.OrderStatusSuccess
	d.orderRepo.EXPECT().GetByID(ctx, stale1.ID).Return(&done, nil)
	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)
	// Second order still pending upstream, left for the next sweep
	d.aggregator.EXPECT().CheckStatus(ctx, stale2.ID).Return(
		&ports.AggregatorResult{Status: ports.AggregatorStatusPending}, nil)

	resolved, err := d.svc.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
}

func TestRechargeService_ResolvePending_FailedOrderRefunds(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	stale := domain.NewRechargeOrder(uuid.New(), domain.RoleRetailer,
		domain.ServiceTypePrepaid, "AIRTEL", nil, "9876543210", 10000)
	stale.Status = domain.OrderStatusPendingConfirmation

	d.orderRepo.EXPECT().ListPendingConfirmation(ctx, gomock.Any(), 50).
		Return([]domain.RechargeOrder{*stale}, nil)
	d.aggregator.EXPECT().CheckStatus(ctx, stale.ID).Return(
		&ports.AggregatorResult{Status: ports.AggregatorStatusFailed}, nil)
	// Refund settles first, then the parked order turns FAILED
	gomock.InOrder(
		d.walletSvc.EXPECT().Refund(ctx, "ORD-"+stale.ID.String(), "recharge failed").
			Return(&domain.LedgerEntry{ID: uuid.New(), Amount: 10000}, nil),
		d.orderRepo.EXPECT().TransitionStatus(ctx, stale.ID, domain.OrderStatusPendingConfirmation, domain.OrderStatusFailed, nil).Return(true, nil),
	)

	resolved, err := d.svc.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
}

func TestRechargeService_ResolvePending_CheckFailureSkips(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	stale := domain.NewRechargeOrder(uuid.New(), domain.RoleRetailer,
		domain.ServiceTypePrepaid, "AIRTEL", nil, "9876543210", 10000)
	stale.Status = domain.OrderStatusPendingConfirmation

	d.orderRepo.EXPECT().ListPendingConfirmation(ctx, gomock.Any(), 50).
		Return([]domain.RechargeOrder{*stale}, nil)
	d.aggregator.EXPECT().CheckStatus(ctx, stale.ID).Return(nil,
		apperror.ErrExternalServiceUnavailable(context.DeadlineExceeded))

	resolved, err := d.svc.ResolvePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)
}

// ==================== Catalog ====================

func TestRechargeService_ListPlans_CacheHit(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	plans := []domain.Plan{{Amount: 19900, Validity: "28 days", Category: "Unlimited"}}
	raw, err := json.Marshal(plans)
	require.NoError(t, err)

	// A warm cache never touches the aggregator
	d.planCache.EXPECT().Get(ctx, "AIRTEL").Return(raw, nil)

	result, err := d.svc.ListPlans(ctx, "AIRTEL", nil)
	require.NoError(t, err)
	assert.Equal(t, plans, result)
}

func TestRechargeService_ListPlans_CacheMissFillsCache(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	circle := "DL"
	plans := []domain.Plan{{Amount: 23900, Validity: "56 days"}}

	d.planCache.EXPECT().Get(ctx, "AIRTEL:DL").Return(nil, nil)
	d.aggregator.EXPECT().ListPlans(ctx, "AIRTEL", &circle).Return(plans, nil)
	d.planCache.EXPECT().Set(ctx, "AIRTEL:DL", gomock.Any(), planCacheTTL).Return(nil)

	result, err := d.svc.ListPlans(ctx, "AIRTEL", &circle)
	require.NoError(t, err)
	assert.Equal(t, plans, result)
}

func TestRechargeService_FetchBill_UnsupportedOperator(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	// Prepaid operators have no bills to fetch
	d.operatorRepo.EXPECT().GetByCode(ctx, "AIRTEL").Return(prepaidOperator(), nil)

	bill, err := d.svc.FetchBill(ctx, "AIRTEL", "9876543210")
	assert.Nil(t, bill)
	assertAppError(t, err, "APP_001")
}

func TestRechargeService_FetchBill(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	op := &domain.Operator{
		Code:              "BSES",
		ServiceType:       domain.ServiceTypeElectricity,
		MinAmount:         100,
		SupportsBillFetch: true,
	}
	bill := &domain.BillDetails{CustomerName: "A Kumar", DueAmount: 154000, RefID: "BILL-9"}

	d.operatorRepo.EXPECT().GetByCode(ctx, "BSES").Return(op, nil)
	d.aggregator.EXPECT().FetchBill(ctx, "BSES", "DL-123456").Return(bill, nil)

	result, err := d.svc.FetchBill(ctx, "BSES", "DL-123456")
	require.NoError(t, err)
	assert.Equal(t, int64(154000), result.DueAmount)
}

func TestRechargeService_DetectOperator(t *testing.T) {
	d := setupRechargeService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	// Detection failures surface as nil, nil and never block a purchase
	d.aggregator.EXPECT().DetectOperator(ctx, "9876543210").Return(nil, nil)

	hint, err := d.svc.DetectOperator(ctx, "9876543210")
	assert.NoError(t, err)
	assert.Nil(t, hint)
}
