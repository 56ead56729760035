package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var contributionColumnNames = []string{
	"id", "campaign_id", "contributor_name", "message", "is_anonymous",
	"amount", "currency", "status", "reference", "payment_request",
	"preimage", "created_at", "expires_at", "paid_at",
}

func testContribution() *contribution.Contribution {
	name := "Alice"
	return &contribution.Contribution{
		ID:              uuid.New(),
		CampaignID:      uuid.New(),
		ContributorName: &name,
		Amount:          2100,
		Currency:        shared.CurrencySats,
		Status:          shared.ContributionStatusPending,
		Reference:       "abc123hash",
		PaymentRequest:  "lnbc21u1p...",
		CreatedAt:       time.Now().UTC(),
		ExpiresAt:       time.Now().UTC().Add(time.Hour),
	}
}

func contributionRow(c *contribution.Contribution) *pgxmock.Rows {
	return pgxmock.NewRows(contributionColumnNames).AddRow(
		c.ID, c.CampaignID, c.ContributorName, c.Message, c.IsAnonymous,
		c.Amount, c.Currency, c.Status, c.Reference, c.PaymentRequest,
		c.Preimage, c.CreatedAt, c.ExpiresAt, c.PaidAt,
	)
}

func TestContributionRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContributionRepository{querier: mock, logger: newTestLogger()}
	c := testContribution()

	query := `INSERT INTO contributions`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(c.ID, c.CampaignID, c.ContributorName, c.Message, c.IsAnonymous, c.Amount, c.Currency, c.Status, c.Reference, c.PaymentRequest, c.Preimage, c.CreatedAt, c.ExpiresAt, c.PaidAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, c)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate reference", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(c.ID, c.CampaignID, c.ContributorName, c.Message, c.IsAnonymous, c.Amount, c.Currency, c.Status, c.Reference, c.PaymentRequest, c.Preimage, c.CreatedAt, c.ExpiresAt, c.PaidAt).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(ctx, c)
		assert.ErrorIs(t, err, contribution.ErrDuplicateReference{Reference: c.Reference})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(c.ID, c.CampaignID, c.ContributorName, c.Message, c.IsAnonymous, c.Amount, c.Currency, c.Status, c.Reference, c.PaymentRequest, c.Preimage, c.CreatedAt, c.ExpiresAt, c.PaidAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, c)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create contribution")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestContributionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContributionRepository{querier: mock, logger: newTestLogger()}
	c := testContribution()

	query := `SELECT (.+) FROM contributions WHERE id = \$1`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(c.ID).
			WillReturnRows(contributionRow(c))

		got, err := repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, c.Reference, got.Reference)
		assert.Equal(t, shared.ContributionStatusPending, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(c.ID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(ctx, c.ID)
		assert.ErrorIs(t, err, contribution.ErrNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestContributionRepository_LockByReference(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContributionRepository{querier: mock, logger: newTestLogger()}
	c := testContribution()

	query := `SELECT (.+) FROM contributions WHERE reference = \$1 FOR UPDATE`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(c.Reference).
			WillReturnRows(contributionRow(c))

		got, err := repo.LockByReference(ctx, c.Reference)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.LockByReference(ctx, "missing")
		assert.ErrorIs(t, err, contribution.ErrNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestContributionRepository_MarkTerminal(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContributionRepository{querier: mock, logger: newTestLogger()}
	id := uuid.New()
	paidAt := time.Now().UTC()

	query := `UPDATE contributions SET status = \$1, paid_at = \$2, preimage = \$3 WHERE id = \$4 AND status = 'pending'`

	t.Run("transition to paid", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.ContributionStatusPaid, &paidAt, "preimg", id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkTerminal(ctx, id, shared.ContributionStatusPaid, &paidAt, "preimg")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already terminal", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.ContributionStatusExpired, (*time.Time)(nil), "", id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkTerminal(ctx, id, shared.ContributionStatusExpired, nil, "")
		assert.ErrorIs(t, err, contribution.ErrAlreadyTerminal{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestContributionRepository_ListPending(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContributionRepository{querier: mock, logger: newTestLogger()}
	c1 := testContribution()
	c2 := testContribution()
	now := time.Now().UTC()

	query := `SELECT (.+) FROM contributions WHERE status = 'pending' AND expires_at > \$1 ORDER BY created_at ASC LIMIT \$2`

	rows := pgxmock.NewRows(contributionColumnNames).
		AddRow(c1.ID, c1.CampaignID, c1.ContributorName, c1.Message, c1.IsAnonymous, c1.Amount, c1.Currency, c1.Status, c1.Reference, c1.PaymentRequest, c1.Preimage, c1.CreatedAt, c1.ExpiresAt, c1.PaidAt).
		AddRow(c2.ID, c2.CampaignID, c2.ContributorName, c2.Message, c2.IsAnonymous, c2.Amount, c2.Currency, c2.Status, c2.Reference, c2.PaymentRequest, c2.Preimage, c2.CreatedAt, c2.ExpiresAt, c2.PaidAt)

	mock.ExpectQuery(query).
		WithArgs(now, 100).
		WillReturnRows(rows)

	pending, err := repo.ListPending(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, c1.ID, pending[0].ID)
	assert.Equal(t, c2.ID, pending[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContributionRepository_SumPaidByCampaign(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContributionRepository{querier: mock, logger: newTestLogger()}
	campaignID := uuid.New()

	query := `SELECT COALESCE\(SUM\(amount\), 0\) FROM contributions WHERE campaign_id = \$1 AND status = 'paid'`

	mock.ExpectQuery(query).
		WithArgs(campaignID).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(4200)))

	sum, err := repo.SumPaidByCampaign(ctx, campaignID)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
