package rules

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"autoexit/src/model"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	rules []model.ManagementRule
}

func (m *memStore) Create(ctx context.Context, rule *model.ManagementRule) error {
	rule.ID = uint(len(m.rules) + 1)
	rule.IsActive = true
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *memStore) ListByUser(ctx context.Context, userID string) ([]model.ManagementRule, error) {
	var out []model.ManagementRule
	for _, r := range m.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Delete(ctx context.Context, id uint, userID string) (bool, error) {
	for i, r := range m.rules {
		if r.ID == id && r.UserID == userID {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memHistory []model.ExitExecutionLog

func (m memHistory) FindByRuleID(ctx context.Context, ruleID uint, limit int) ([]model.ExitExecutionLog, error) {
	return m, nil
}

func newRules(store *memStore, history memHistory) (*Rules, *bytes.Buffer) {
	log, _ := logrustest.NewNullLogger()
	out := &bytes.Buffer{}
	return &Rules{Log: logrus.NewEntry(log), Store: store, Exits: history, Out: out}, out
}

func TestBuildRule(t *testing.T) {
	rule, err := BuildRule(AddInput{
		UserID: "u1", Symbol: " nifty ", Exchange: "nfo", Product: "mis", Group: true,
		ExitType: "both", MaxLoss: 500, Indicator: "EMA", Period: 20, Condition: "close_below",
	})
	require.NoError(t, err)
	assert.Equal(t, "NIFTY", rule.Symbol)
	assert.Equal(t, "NFO", rule.Exchange)
	assert.Equal(t, model.ExitTypeBoth, rule.ExitType)
	assert.True(t, rule.IsGroupRule)
	require.NotNil(t, rule.MaxLoss)
	assert.Equal(t, 500.0, *rule.MaxLoss)
	assert.Nil(t, rule.TargetProfit)

	cond, err := rule.ParseCandleCondition()
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, "EMA", cond.Indicator)
	assert.Equal(t, 20, cond.Period)

	_, err = BuildRule(AddInput{UserID: "u1", Symbol: "SBIN", Exchange: "NSE", Product: "MIS", ExitType: "SOMETIMES"})
	assert.True(t, errors.Is(err, model.ErrInvalidRule))

	_, err = BuildRule(AddInput{UserID: "u1", Symbol: "SBIN", Exchange: "NSE", Product: "MIS", ExitType: "TOTAL_LOSS", MaxLoss: -5})
	assert.True(t, errors.Is(err, model.ErrInvalidRule))
}

func TestAddListDelete(t *testing.T) {
	store := &memStore{}
	r, out := newRules(store, nil)
	ctx := context.Background()

	rule, err := r.Add(ctx, AddInput{UserID: "u1", Symbol: "SBIN", Exchange: "NSE", Product: "MIS", ExitType: "TOTAL_LOSS", MaxLoss: 250})
	require.NoError(t, err)
	assert.Equal(t, uint(1), rule.ID)
	assert.Contains(t, out.String(), "created rule 1")

	out.Reset()
	require.NoError(t, r.List(ctx, "u1"))
	assert.Contains(t, out.String(), "SBIN")
	assert.Contains(t, out.String(), "250.00")

	assert.Error(t, r.Delete(ctx, 1, "someone-else"))
	require.NoError(t, r.Delete(ctx, 1, "u1"))
	assert.Empty(t, store.rules)
}

func TestHistory(t *testing.T) {
	msg := "RMS rejected"
	history := memHistory{
		{Symbol: "SBIN", Side: "SELL", Quantity: 10, Pnl: -310.5, Reason: "Max Loss Triggered", Status: model.ExitStatusRejected, ErrorMessage: &msg, RequestedAt: time.Now()},
	}
	r, out := newRules(&memStore{}, history)

	require.NoError(t, r.History(context.Background(), 1, 10))
	assert.Contains(t, out.String(), "Max Loss Triggered")
	assert.Contains(t, out.String(), "-310.50")
	assert.Contains(t, out.String(), "RMS rejected")
}
