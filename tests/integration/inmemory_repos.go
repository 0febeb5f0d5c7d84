package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// The in-memory repos back the integration suite without PostgreSQL. The
// locking transactor hands out transactions holding a real mutex, so the
// pessimistic-locking semantics the services rely on hold here too: the
// exact-floor(B/A) concurrency property is asserted, not approximated.

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.wallets {
		if existing.OwnerID == w.OwnerID {
			return fmt.Errorf("wallet already exists for owner")
		}
	}
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.OwnerID == ownerID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByOwnerIDForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByOwnerID(ctx, ownerID)
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Balance = newBalance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{entries: make(map[uuid.UUID]*domain.LedgerEntry)}
}

func (r *inMemoryLedgerRepo) AppendIfAbsent(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Reference == entry.Reference && e.Kind == entry.Kind && e.Status == domain.EntryStatusCompleted {
			return false, nil
		}
	}
	cp := *entry
	r.entries[entry.ID] = &cp
	return true, nil
}

func (r *inMemoryLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryLedgerRepo) GetCompletedByReference(ctx context.Context, reference string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Reference == reference && e.Kind == kind && e.Status == domain.EntryStatusCompleted {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryLedgerRepo) GetCompletedDebitByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Reference == reference && !e.Kind.IsCredit() && e.Status == domain.EntryStatusCompleted {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryLedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.WalletID != params.WalletID {
			continue
		}
		if params.Kind != nil && e.Kind != *params.Kind {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		if params.From != nil && e.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && e.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryLedgerRepo) SumCompletedByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.entries {
		if e.WalletID == walletID && e.Status == domain.EntryStatusCompleted {
			sum += e.SignedAmount()
		}
	}
	return sum, nil
}

// --- In-Memory Application Repo ---

type inMemoryApplicationRepo struct {
	mu   sync.RWMutex
	apps map[uuid.UUID]*domain.Application
}

func newInMemoryApplicationRepo() *inMemoryApplicationRepo {
	return &inMemoryApplicationRepo{apps: make(map[uuid.UUID]*domain.Application)}
}

func (r *inMemoryApplicationRepo) Create(ctx context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *app
	r.apps[app.ID] = &cp
	return nil
}

func (r *inMemoryApplicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, nil
	}
	cp := *app
	return &cp, nil
}

func (r *inMemoryApplicationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Application, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryApplicationRepo) Update(ctx context.Context, tx pgx.Tx, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.ID]; !ok {
		return fmt.Errorf("application not found")
	}
	cp := *app
	r.apps[app.ID] = &cp
	return nil
}

func (r *inMemoryApplicationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, id)
	return nil
}

func (r *inMemoryApplicationRepo) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Application
	for _, app := range r.apps {
		if app.ApplicantID == applicantID {
			result = append(result, *app)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// --- In-Memory Recharge Order Repo ---

type inMemoryRechargeOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.RechargeOrder
}

func newInMemoryRechargeOrderRepo() *inMemoryRechargeOrderRepo {
	return &inMemoryRechargeOrderRepo{orders: make(map[uuid.UUID]*domain.RechargeOrder)}
}

func (r *inMemoryRechargeOrderRepo) Create(ctx context.Context, order *domain.RechargeOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *inMemoryRechargeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RechargeOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *inMemoryRechargeOrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, aggregatorRef *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if aggregatorRef != nil {
		o.AggregatorRef = aggregatorRef
	}
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *inMemoryRechargeOrderRepo) SetLedgerEntry(ctx context.Context, id uuid.UUID, entryID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.LedgerEntryID = &entryID
	return nil
}

func (r *inMemoryRechargeOrderRepo) ListPendingConfirmation(ctx context.Context, before time.Time, limit int) ([]domain.RechargeOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.RechargeOrder
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusPendingConfirmation && o.UpdatedAt.Before(before) {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- In-Memory Topup Order Repo ---

type inMemoryTopupOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.TopupOrder
}

func newInMemoryTopupOrderRepo() *inMemoryTopupOrderRepo {
	return &inMemoryTopupOrderRepo{orders: make(map[uuid.UUID]*domain.TopupOrder)}
}

func (r *inMemoryTopupOrderRepo) Create(ctx context.Context, order *domain.TopupOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *inMemoryTopupOrderRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.TopupOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.GatewayOrderID == gatewayOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTopupOrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.TopupStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

// --- In-Memory Operator Repo ---

type inMemoryOperatorRepo struct {
	mu        sync.RWMutex
	operators map[string]*domain.Operator
}

func newInMemoryOperatorRepo(seed ...domain.Operator) *inMemoryOperatorRepo {
	r := &inMemoryOperatorRepo{operators: make(map[string]*domain.Operator)}
	for i := range seed {
		op := seed[i]
		r.operators[op.Code] = &op
	}
	return r
}

func (r *inMemoryOperatorRepo) GetByCode(ctx context.Context, code string) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[code]
	if !ok {
		return nil, nil
	}
	cp := *op
	return &cp, nil
}

func (r *inMemoryOperatorRepo) ListByServiceType(ctx context.Context, serviceType domain.ServiceType) ([]domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Operator
	for _, op := range r.operators {
		if op.ServiceType == serviceType {
			result = append(result, *op)
		}
	}
	return result, nil
}

// --- In-Memory Fee Config Repo ---

type inMemoryFeeConfigRepo struct {
	mu  sync.RWMutex
	cfg ports.FeeConfig
}

func newInMemoryFeeConfigRepo(cfg ports.FeeConfig) *inMemoryFeeConfigRepo {
	return &inMemoryFeeConfigRepo{cfg: cfg}
}

func (r *inMemoryFeeConfigRepo) Current(ctx context.Context) (ports.FeeConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg, nil
}

// --- Locking Transactor ---

// lockingTransactor serializes transactions with one mutex, standing in for
// row-level SELECT FOR UPDATE. Commit and Rollback both release; the
// sync.Once absorbs the deferred Rollback after a Commit.
type lockingTransactor struct {
	mu sync.Mutex
}

func newLockingTransactor() *lockingTransactor {
	return &lockingTransactor{}
}

func (t *lockingTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	tx := &lockedTx{}
	tx.release = func() { t.mu.Unlock() }
	return tx, nil
}

type lockedTx struct {
	once    sync.Once
	release func()
}

func (t *lockedTx) Commit(ctx context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *lockedTx) Rollback(ctx context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *lockedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *lockedTx) Conn() *pgx.Conn { return nil }

// --- Fake Aggregator ---

// fakeAggregator scripts the aggregator's answers per test.
type fakeAggregator struct {
	mu           sync.Mutex
	submitResult *ports.AggregatorResult
	submitErr    error
	statusResult *ports.AggregatorResult
	statusErr    error
	submitCalls  int
	statusCalls  int
}

func newFakeAggregator() *fakeAggregator {
	return &fakeAggregator{
		submitResult: &ports.AggregatorResult{Status: ports.AggregatorStatusSuccess, Ref: "AGG-REF-1"},
	}
}

func (f *fakeAggregator) script(result *ports.AggregatorResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitResult = result
	f.submitErr = err
}

func (f *fakeAggregator) scriptStatus(result *ports.AggregatorResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusResult = result
	f.statusErr = err
}

func (f *fakeAggregator) DetectOperator(ctx context.Context, number string) (*domain.OperatorHint, error) {
	return &domain.OperatorHint{OperatorCode: "AIRTEL"}, nil
}

func (f *fakeAggregator) ListPlans(ctx context.Context, operatorCode string, circleCode *string) ([]domain.Plan, error) {
	return []domain.Plan{{Amount: 19900, Validity: "28 days", Description: "Unlimited calls + 1.5GB/day", Category: "POPULAR"}}, nil
}

func (f *fakeAggregator) FetchBill(ctx context.Context, operatorCode, number string) (*domain.BillDetails, error) {
	return &domain.BillDetails{CustomerName: "A Kumar", DueAmount: 84500, DueDate: time.Now().Add(7 * 24 * time.Hour), RefID: "BILL-1"}, nil
}

func (f *fakeAggregator) Submit(ctx context.Context, req ports.AggregatorSubmitRequest) (*ports.AggregatorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	res := *f.submitResult
	return &res, nil
}

func (f *fakeAggregator) CheckStatus(ctx context.Context, orderID uuid.UUID) (*ports.AggregatorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.statusResult == nil {
		return &ports.AggregatorResult{Status: ports.AggregatorStatusPending}, nil
	}
	res := *f.statusResult
	return &res, nil
}

// --- Fake Payment Gateway ---

type fakeGateway struct {
	mu     sync.Mutex
	orders map[string]int64 // orderID -> total amount
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: make(map[string]int64)}
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amount int64, ownerID uuid.UUID) (*ports.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "GW-" + uuid.NewString()
	f.orders[id] = amount
	return &ports.GatewayOrder{OrderID: id, SessionToken: "sess-" + id}, nil
}
