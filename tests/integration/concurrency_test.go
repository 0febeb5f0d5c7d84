package integration

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/internal/service"
	"sevapay/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWalletStack(t *testing.T) (ports.WalletService, *inMemoryWalletRepo, *inMemoryLedgerRepo) {
	t.Helper()
	walletRepo := newInMemoryWalletRepo()
	ledgerRepo := newInMemoryLedgerRepo()
	transactor := newLockingTransactor()
	notifier := service.NewChannelBalanceNotifier()
	log := logger.New("error", false)
	return service.NewWalletService(walletRepo, ledgerRepo, transactor, notifier, log), walletRepo, ledgerRepo
}

// TestConcurrentDebits_ExactBudget drives N concurrent debits of A against a
// balance of B and requires that exactly floor(B/A) succeed. The locking
// transactor serializes mutations the way SELECT FOR UPDATE does against
// PostgreSQL, so this is an exact assertion, not a bound.
func TestConcurrentDebits_ExactBudget(t *testing.T) {
	svc, walletRepo, ledgerRepo := newWalletStack(t)
	ctx := t.Context()
	ownerID := uuid.New()

	const (
		balance     = int64(1000000)
		debitAmount = int64(30000)
		concurrency = 100
	)
	expectedSuccesses := balance / debitAmount // 33

	_, err := svc.Credit(ctx, ports.WalletMutation{
		OwnerID:   ownerID,
		Kind:      domain.EntryKindDeposit,
		Amount:    balance,
		Reference: "SEED-1",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var successCount, insufficientCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := svc.Debit(ctx, ports.WalletMutation{
				OwnerID:   ownerID,
				Kind:      domain.EntryKindRecharge,
				Amount:    debitAmount,
				Reference: fmt.Sprintf("ORD-CONC-%d", idx),
			})
			if err == nil {
				successCount.Add(1)
				return
			}
			insufficientCount.Add(1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, expectedSuccesses, successCount.Load(), "exactly floor(B/A) debits must succeed")
	assert.Equal(t, int64(concurrency)-expectedSuccesses, insufficientCount.Load())

	wallet, err := walletRepo.GetByOwnerID(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, balance-expectedSuccesses*debitAmount, wallet.Balance)
	assert.GreaterOrEqual(t, wallet.Balance, int64(0))

	sum, err := ledgerRepo.SumCompletedByWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Balance, sum, "balance must equal the signed ledger sum")
}

// TestConcurrentCredits_SameReference fires concurrent credits sharing one
// idempotency reference: exactly one entry lands, every caller gets it back.
func TestConcurrentCredits_SameReference(t *testing.T) {
	svc, walletRepo, ledgerRepo := newWalletStack(t)
	ctx := t.Context()
	ownerID := uuid.New()

	const concurrency = 20

	var wg sync.WaitGroup
	entryIDs := make([]uuid.UUID, concurrency)
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			entry, err := svc.Credit(ctx, ports.WalletMutation{
				OwnerID:   ownerID,
				Kind:      domain.EntryKindDeposit,
				Amount:    50000,
				Reference: "TOP-SAME-REF",
			})
			errs[idx] = err
			if entry != nil {
				entryIDs[idx] = entry.ID
			}
		}(i)
	}
	wg.Wait()

	unique := make(map[uuid.UUID]struct{})
	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		unique[entryIDs[i]] = struct{}{}
	}
	assert.Len(t, unique, 1, "replays must return the single original entry")

	wallet, err := walletRepo.GetByOwnerID(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), wallet.Balance, "the credit must apply exactly once")

	sum, err := ledgerRepo.SumCompletedByWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), sum)
}

// TestConcurrentRefunds_AtMostOnce issues concurrent refunds for the same
// original debit; the balance must come back exactly once.
func TestConcurrentRefunds_AtMostOnce(t *testing.T) {
	svc, walletRepo, _ := newWalletStack(t)
	ctx := t.Context()
	ownerID := uuid.New()

	_, err := svc.Credit(ctx, ports.WalletMutation{
		OwnerID:   ownerID,
		Kind:      domain.EntryKindDeposit,
		Amount:    100000,
		Reference: "SEED-R",
	})
	require.NoError(t, err)
	_, err = svc.Debit(ctx, ports.WalletMutation{
		OwnerID:   ownerID,
		Kind:      domain.EntryKindRecharge,
		Amount:    40000,
		Reference: "ORD-REFUND-RACE",
	})
	require.NoError(t, err)

	const concurrency = 10
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Refund(ctx, "ORD-REFUND-RACE", "provider failure")
		}()
	}
	wg.Wait()

	wallet, err := walletRepo.GetByOwnerID(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), wallet.Balance, "the refund must apply exactly once")
}

// TestConcurrentPurchases_OverBudget runs the whole recharge pipeline
// concurrently with a budget that covers only some of the orders. Every
// successful order carries a debit; failures leave no trace.
func TestConcurrentPurchases_OverBudget(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	retailerID := uuid.New()
	app.seedBalance(t, retailerID, 50000) // covers 2 purchases of 19900, commission excluded

	const concurrency = 6
	var wg sync.WaitGroup
	var successCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			order, err := app.rechargeSvc.Purchase(t.Context(), ports.PurchaseRequest{
				PurchaserID:  retailerID,
				Role:         domain.RoleRetailer,
				ServiceType:  domain.ServiceTypePrepaid,
				OperatorCode: "AIRTEL",
				TargetNumber: fmt.Sprintf("98765432%02d", idx),
				Amount:       19900,
			})
			if err == nil && order.Status == domain.OrderStatusSuccess {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	// Commissions credited along the way can fund an extra purchase at most
	// once here (2 * 398 commission < 19900), so the count stays exact.
	assert.Equal(t, int64(2), successCount.Load())

	wallet, err := app.walletRepo.GetByOwnerID(t.Context(), retailerID)
	require.NoError(t, err)
	sum, err := app.ledgerRepo.SumCompletedByWallet(t.Context(), wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, sum, wallet.Balance)
	assert.GreaterOrEqual(t, wallet.Balance, int64(0))
}
