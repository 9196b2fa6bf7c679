package executors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"autoexit/src/broker"
	"autoexit/src/database"
	"autoexit/src/model"
	"autoexit/src/quote"
	"autoexit/src/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker serves a fixed positionbook and records placed orders.
type fakeBroker struct {
	mu        sync.Mutex
	positions string
	orders    []string
}

func (b *fakeBroker) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/positionbook", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(b.positions))
	})
	mux.HandleFunc("/api/v1/placeorder", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.orders = append(b.orders, string(body))
		n := len(b.orders)
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"status":"success","orderid":"ORD-%d"}`, n)
	})
	return mux
}

func TestEngineCycleAgainstDatabaseAndBroker(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), 1)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	rules := repository.NewRuleRepository().WithDB(db)
	creds := repository.NewCredentialRepository().WithDB(db)
	exitLogs := repository.NewExitLogRepository().WithDB(db)
	exceptions := repository.NewExceptionRepository().WithDB(db)

	group := &model.ManagementRule{
		UserID: "u1", Symbol: "NIFTY", Exchange: "NFO", Product: "MIS",
		IsGroupRule: true, ExitType: model.ExitTypeTotalLoss, MaxLoss: floatPtr(1000),
	}
	untouched := &model.ManagementRule{
		UserID: "u1", Symbol: "SBIN", Exchange: "NSE", Product: "MIS",
		ExitType: model.ExitTypeBoth, TargetProfit: floatPtr(5000), MaxLoss: floatPtr(5000),
	}
	require.NoError(t, rules.Create(ctx, group))
	require.NoError(t, rules.Create(ctx, untouched))
	require.NoError(t, creds.Upsert(ctx, "u1", "openalgo", "live-key"))

	fb := &fakeBroker{positions: `{"status":"success","data":[
		{"symbol":"NIFTY24JANFUT","exchange":"NFO","product":"MIS","quantity":"50","netavgprc":"21500","pnl":"0"},
		{"symbol":"NIFTYBANK24JAN","exchange":"NFO","product":"NRML","quantity":"15","netavgprc":"47000","pnl":"-9000"},
		{"symbol":"SBIN","exchange":"NSE","product":"MIS","quantity":"10","netavgprc":"600","pnl":"20"}
	]}`}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	client := broker.NewClient(broker.Config{BaseURL: srv.URL, Timeout: 2 * time.Second, RetryAttempts: 1})

	cache := quote.NewCache()
	ltp := 21470.0
	cache.Update("NIFTY24JANFUT", model.Quote{LTP: &ltp})

	log, _ := logrustest.NewNullLogger()
	entry := logrus.NewEntry(log)
	exec := NewExitExecutor(entry, Config{ExitRetryCooldown: 30 * time.Second}, client, rules,
		WithExitRecorder(exitLogs), WithExceptionRecorder(exceptions), WithPriceSource(cache))
	evaluator := NewEvaluator(entry, rules, client, creds, cache, exec)

	// (21470 - 21500) * 50 = -1500 breaches the group max loss of 1000.
	result, err := evaluator.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rules)
	assert.Equal(t, 1, result.Triggers)
	assert.Equal(t, 1, result.Exits)

	require.Len(t, fb.orders, 1)
	assert.JSONEq(t, `{
		"apikey":"live-key","strategy":"ManagementService","symbol":"NIFTY24JANFUT","action":"SELL",
		"exchange":"NFO","pricetype":"MARKET","product":"MIS","quantity":"50",
		"price":"0","trigger_price":"0","disclosed_quantity":"0","tag":"MANAGEMENT_EXIT"
	}`, fb.orders[0])

	stored, err := rules.FindByID(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.LastTriggered)

	logs, err := exitLogs.FindByRuleID(ctx, group.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ExitStatusSubmitted, logs[0].Status)
	assert.Equal(t, "ORD-1", logs[0].BrokerOrderID)
	assert.Equal(t, ReasonGroupMaxLoss, logs[0].Reason)
	assert.True(t, logs[0].Deactivated)
	assert.Equal(t, result.ID, logs[0].CycleID)

	// The retired rule is gone from the next scan and nothing is resubmitted.
	second, err := evaluator.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Rules)
	assert.Zero(t, second.Triggers)
	assert.Len(t, fb.orders, 1)
}
