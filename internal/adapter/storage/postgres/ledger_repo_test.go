package postgres

import (
	"context"
	"testing"
	"time"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(walletID, ownerID uuid.UUID) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:          uuid.New(),
		WalletID:    walletID,
		OwnerID:     ownerID,
		Kind:        domain.EntryKindSchemePayment,
		Amount:      123000,
		Status:      domain.EntryStatusCompleted,
		Reference:   "APP-001",
		Description: "birth certificate application",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func ledgerColumns() []string {
	return []string{"id", "wallet_id", "owner_id", "kind", "amount", "status",
		"reference", "description", "original_entry_id", "created_at"}
}

func ledgerRow(e *domain.LedgerEntry) *pgxmock.Rows {
	return pgxmock.NewRows(ledgerColumns()).AddRow(
		e.ID, e.WalletID, e.OwnerID, e.Kind, e.Amount, e.Status,
		e.Reference, e.Description, e.OriginalEntryID, e.CreatedAt,
	)
}

func TestLedgerRepo_AppendIfAbsent_Inserted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.WalletID, e.OwnerID, e.Kind, e.Amount,
			e.Status, e.Reference, e.Description, e.OriginalEntryID, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.AppendIfAbsent(context.Background(), tx, e)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_AppendIfAbsent_DuplicateSkipped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.WalletID, e.OwnerID, e.Kind, e.Amount,
			e.Status, e.Reference, e.Description, e.OriginalEntryID, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.AppendIfAbsent(context.Background(), tx, e)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE id").
		WithArgs(e.ID).
		WillReturnRows(ledgerRow(e))

	result, err := repo.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, e.ID, result.ID)
	assert.Equal(t, e.Reference, result.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetCompletedByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE reference .+ AND kind").
		WithArgs(e.Reference, e.Kind).
		WillReturnRows(ledgerRow(e))

	result, err := repo.GetCompletedByReference(context.Background(), e.Reference, e.Kind)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, e.Amount, result.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetCompletedByReference_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE reference .+ AND kind").
		WithArgs("MISSING-REF", domain.EntryKindDeposit).
		WillReturnRows(pgxmock.NewRows(ledgerColumns()))

	result, err := repo.GetCompletedByReference(context.Background(), "MISSING-REF", domain.EntryKindDeposit)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetCompletedDebitByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM ledger_entries .+ WHERE reference").
		WithArgs(e.Reference).
		WillReturnRows(ledgerRow(e))

	result, err := repo.GetCompletedDebitByReference(context.Background(), e.Reference)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.EntryKindSchemePayment, result.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	e := newTestEntry(walletID, uuid.New())

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM ledger_entries .+ ORDER BY created_at DESC").
		WithArgs(walletID, 20, 0).
		WillReturnRows(ledgerRow(e))

	entries, total, err := repo.List(context.Background(), ports.LedgerListParams{
		WalletID: walletID,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, e.ID, entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	kind := domain.EntryKindDeposit
	status := domain.EntryStatusCompleted

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(walletID, kind, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs(walletID, kind, status, 10, 0).
		WillReturnRows(pgxmock.NewRows(ledgerColumns()))

	entries, total, err := repo.List(context.Background(), ports.LedgerListParams{
		WalletID: walletID,
		Kind:     &kind,
		Status:   &status,
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumCompletedByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(77000)))

	sum, err := repo.SumCompletedByWallet(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(77000), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
