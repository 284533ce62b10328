package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkcjanta/roi-project/internal/domain/ledger"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

func testEntry() *ledger.Entry {
	return &ledger.Entry{
		ID:            uuid.New(),
		ParticipantID: uuid.New(),
		Wallet:        shared.WalletROI,
		Direction:     shared.DirectionCredit,
		Amount:        decimal.NewFromInt(100),
		BalanceBefore: decimal.NewFromInt(50),
		BalanceAfter:  decimal.NewFromInt(150),
		Reason:        "roi_distribution",
		SourceRef:     "roi:" + uuid.NewString(),
		CorrelationID: "corr-1",
		Status:        shared.EntryStatusCompleted,
		CreatedAt:     time.Now(),
	}
}

func ledgerRow(e *ledger.Entry) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "participant_id", "wallet", "direction", "amount", "balance_before",
		"balance_after", "reason", "source_ref", "correlation_id", "status", "created_at",
	}).AddRow(e.ID, e.ParticipantID, e.Wallet, e.Direction, e.Amount, e.BalanceBefore,
		e.BalanceAfter, e.Reason, e.SourceRef, e.CorrelationID, e.Status, e.CreatedAt)
}

func TestLedgerRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: newTestLogger()}
	e := testEntry()

	query := `
		INSERT INTO ledger_entries \(
			id, participant_id, wallet, direction, amount, balance_before,
			balance_after, reason, source_ref, correlation_id, status, created_at
		\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11, \$12\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(e.ID, e.ParticipantID, e.Wallet, e.Direction, e.Amount, e.BalanceBefore,
				e.BalanceAfter, e.Reason, e.SourceRef, e.CorrelationID, e.Status, e.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, e)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(e.ID, e.ParticipantID, e.Wallet, e.Direction, e.Amount, e.BalanceBefore,
				e.BalanceAfter, e.Reason, e.SourceRef, e.CorrelationID, e.Status, e.CreatedAt).
			WillReturnError(dbErr)

		err := repo.Create(ctx, e)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create ledger entry")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_GetBySourceRef(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: newTestLogger()}
	e := testEntry()

	query := `FROM ledger_entries WHERE source_ref = \$1`

	t.Run("applied key returns the entry", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(e.SourceRef).WillReturnRows(ledgerRow(e))

		got, err := repo.GetBySourceRef(ctx, e.SourceRef)
		assert.NoError(t, err)
		assert.Equal(t, e, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unapplied key yields nil without error", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(e.SourceRef).WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetBySourceRef(ctx, e.SourceRef)
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_GetByParticipantID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: newTestLogger()}
	participantID := uuid.New()
	e := testEntry()
	e.ParticipantID = participantID

	query := `ORDER BY created_at DESC`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(participantID, 10, 0).WillReturnRows(ledgerRow(e))

		entries, err := repo.GetByParticipantID(ctx, participantID, 10, 0)
		assert.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, e, entries[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty page", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(participantID, 10, 0).
			WillReturnRows(pgxmock.NewRows([]string{"id"}))

		entries, err := repo.GetByParticipantID(ctx, participantID, 10, 0)
		assert.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
