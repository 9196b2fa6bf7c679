package executors

import (
	"context"
	"errors"
	"sync"
	"time"

	"autoexit/src/model"
)

type memRuleStore struct {
	mu            sync.Mutex
	rules         []model.ManagementRule
	nextID        uint
	listErr       error
	deactivateErr error
	listCalls     int
	deactivated   []uint
}

func newMemRuleStore(rules ...model.ManagementRule) *memRuleStore {
	s := &memRuleStore{}
	for _, r := range rules {
		s.nextID++
		if r.ID == 0 {
			r.ID = s.nextID
		}
		s.rules = append(s.rules, r)
	}
	return s
}

func (s *memRuleStore) ListActive(ctx context.Context) ([]model.ManagementRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.ManagementRule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRuleStore) Deactivate(ctx context.Context, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deactivateErr != nil {
		return false, s.deactivateErr
	}
	for i := range s.rules {
		if s.rules[i].ID == id && s.rules[i].IsActive {
			now := time.Now()
			s.rules[i].IsActive = false
			s.rules[i].LastTriggered = &now
			s.deactivated = append(s.deactivated, id)
			return true, nil
		}
	}
	return false, nil
}

func (s *memRuleStore) Create(ctx context.Context, rule *model.ManagementRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rule.ID = s.nextID
	rule.IsActive = true
	s.rules = append(s.rules, *rule)
	return nil
}

func (s *memRuleStore) ListByUser(ctx context.Context, userID string) ([]model.ManagementRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ManagementRule, 0)
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRuleStore) Delete(ctx context.Context, id uint, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.ID == id && r.UserID == userID {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memRuleStore) isActive(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r.IsActive
		}
	}
	return false
}

type stubPositions struct {
	mu        sync.Mutex
	byKey     map[string][]model.Position
	errs      map[string]error
	calls     map[string]int
	panicWith interface{}
}

func newStubPositions() *stubPositions {
	return &stubPositions{
		byKey: make(map[string][]model.Position),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (s *stubPositions) GetPositions(ctx context.Context, apiKey string) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[apiKey]++
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	if err := s.errs[apiKey]; err != nil {
		return nil, err
	}
	return append([]model.Position(nil), s.byKey[apiKey]...), nil
}

type placedOrder struct {
	apiKey string
	order  model.ExitOrder
	ctxErr error
}

type stubOrders struct {
	mu     sync.Mutex
	placed []placedOrder
	err    error
	ack    model.OrderAck
	// failSymbols fails orders for these symbols only.
	failSymbols map[string]error
}

func (s *stubOrders) PlaceMarketOrder(ctx context.Context, apiKey string, order model.ExitOrder) (model.OrderAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = append(s.placed, placedOrder{apiKey: apiKey, order: order, ctxErr: ctx.Err()})
	if s.err != nil {
		return model.OrderAck{}, s.err
	}
	if err := s.failSymbols[order.Symbol]; err != nil {
		return model.OrderAck{}, err
	}
	if s.ack.OrderID == "" {
		return model.OrderAck{OrderID: "OID-1", Status: "success"}, nil
	}
	return s.ack, nil
}

func (s *stubOrders) orders() []placedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]placedOrder(nil), s.placed...)
}

type stubCredentials map[string]string

func (s stubCredentials) APIKeyForUser(ctx context.Context, userID string) (string, error) {
	if userID == "broken" {
		return "", errors.New("credential store unavailable")
	}
	return s[userID], nil
}

type stubPrices map[string]float64

func (s stubPrices) LTP(symbol string) (float64, bool) {
	v, ok := s[symbol]
	return v, ok
}

type memExitLog struct {
	mu      sync.Mutex
	entries []model.ExitExecutionLog
}

func (m *memExitLog) CreateExecutionLog(ctx context.Context, log *model.ExitExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *log)
	return nil
}

type memExceptions struct {
	mu      sync.Mutex
	entries []model.Exception
}

func (m *memExceptions) Create(ctx context.Context, exc *model.Exception) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *exc)
	return nil
}

func floatPtr(v float64) *float64 { return &v }
