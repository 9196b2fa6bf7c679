package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"autoexit/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRule(userID, symbol, product string) *model.ManagementRule {
	return &model.ManagementRule{
		UserID:       userID,
		Symbol:       symbol,
		Exchange:     "NSE",
		Product:      product,
		ExitType:     model.ExitTypeTotalLoss,
		MaxLoss:      floatPtr(300),
		TargetProfit: floatPtr(500),
	}
}

func TestRuleRepositoryListActiveQuery(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&RuleRepository{}).WithDB(mockDB)

	rows := sqlmock.NewRows([]string{"id", "user_id", "symbol", "exchange", "product", "exit_type", "is_active"}).
		AddRow(1, "u1", "INFY", "NSE", "MIS", "TOTAL_LOSS", true).
		AddRow(2, "u2", "NIFTY", "NFO", "MIS", "BOTH", true)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "management_rules" WHERE is_active = $1 ORDER BY id ASC`)).
		WithArgs(true).
		WillReturnRows(rows)

	rules, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "INFY", rules[0].Symbol)
	assert.Equal(t, "u2", rules[1].UserID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRepositoryDeactivateIsConditional(t *testing.T) {
	mockDB, mock := newMockDB(t)
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	repo := &RuleRepository{db: mockDB, readDB: mockDB, now: func() time.Time { return fixed }}

	update := regexp.QuoteMeta(`UPDATE "management_rules" SET "is_active"=$1,"last_triggered"=$2 WHERE id = $3 AND is_active = $4`)

	mock.ExpectBegin()
	mock.ExpectExec(update).
		WithArgs(false, fixed, uint(7), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.Deactivate(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)

	// already inactive: zero rows, no error
	mock.ExpectBegin()
	mock.ExpectExec(update).
		WithArgs(false, fixed, uint(7), true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err = repo.Deactivate(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := (&RuleRepository{}).WithDB(newSQLiteDB(t))

	a := newRule("u1", "INFY", "MIS")
	b := newRule("u1", "TCS", "CNC")
	c := newRule("u2", "NIFTY", "MIS")
	c.IsGroupRule = true
	for _, r := range []*model.ManagementRule{a, b, c} {
		require.NoError(t, repo.Create(ctx, r))
		require.NotZero(t, r.ID)
	}

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.True(t, active[2].IsGroupRule)

	ok, err := repo.Deactivate(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// second deactivation is a no-op
	ok, err = repo.Deactivate(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Deactivate(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, ok)

	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, r := range active {
		assert.NotEqual(t, a.ID, r.ID)
	}

	stored, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.LastTriggered)

	// inactive rules stay visible to their owner
	owned, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestRuleRepositoryDeleteIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	repo := (&RuleRepository{}).WithDB(newSQLiteDB(t))

	r := newRule("owner", "INFY", "MIS")
	require.NoError(t, repo.Create(ctx, r))

	ok, err := repo.Delete(ctx, r.ID, "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Delete(ctx, r.ID, "owner")
	require.NoError(t, err)
	assert.True(t, ok)

	missing, err := repo.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRuleRepositoryCreateRejectsInvalidRule(t *testing.T) {
	repo := (&RuleRepository{}).WithDB(newSQLiteDB(t))

	bad := newRule("u1", "INFY", "MIS")
	bad.ExitType = "SOMETIMES"

	err := repo.Create(context.Background(), bad)
	assert.ErrorIs(t, err, model.ErrInvalidRule)
}
