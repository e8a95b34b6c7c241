package rawresult

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlims/lims/internal/domain/flagging"
	"github.com/openlims/lims/internal/domain/order"
	"github.com/openlims/lims/internal/platform/broker"
)

type mockRepo struct {
	staged     map[Key][]byte
	deadLetter [][]byte
	stageErr   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{staged: make(map[Key][]byte)}
}

func (m *mockRepo) StageEnvelope(_ context.Context, env *Envelope, body []byte) (bool, error) {
	if m.stageErr != nil {
		return false, m.stageErr
	}
	if _, ok := m.staged[env.Key()]; ok {
		return false, nil
	}
	m.staged[env.Key()] = body
	return true, nil
}

func (m *mockRepo) DeadLetter(_ context.Context, _ string, body []byte, _ string) error {
	m.deadLetter = append(m.deadLetter, body)
	return nil
}

type mockOrderRepo struct {
	orders  map[uuid.UUID]*order.TestOrder
	results map[uuid.UUID][]*order.TestResult
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		orders:  make(map[uuid.UUID]*order.TestOrder),
		results: make(map[uuid.UUID][]*order.TestResult),
	}
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.TestOrder) error {
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*order.TestOrder, error) {
	return m.orders[id], nil
}

func (m *mockOrderRepo) GetWithResults(_ context.Context, id uuid.UUID) (*order.TestOrder, error) {
	o := m.orders[id]
	if o == nil {
		return nil, nil
	}
	cp := *o
	cp.Results = m.results[id]
	return &cp, nil
}

func (m *mockOrderRepo) List(_ context.Context, _, _ int) ([]*order.TestOrder, int, error) {
	return nil, 0, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	o := m.orders[id]
	if o == nil {
		return errors.New("order not found")
	}
	o.Status = status
	return nil
}

func (m *mockOrderRepo) UpsertResults(_ context.Context, orderID uuid.UUID, results []*order.TestResult) error {
	existing := m.results[orderID]
	for _, res := range results {
		replaced := false
		for i, have := range existing {
			if have.TestCode == res.TestCode {
				res.ID = have.ID
				existing[i] = res
				replaced = true
				break
			}
		}
		if !replaced {
			res.ID = uuid.New()
			existing = append(existing, res)
		}
	}
	m.results[orderID] = existing
	return nil
}

func (m *mockOrderRepo) SaveReviewOutcome(_ context.Context, orderID uuid.UUID, _ []*order.TestResult, status string) error {
	return m.UpdateStatus(context.Background(), orderID, status)
}

type stubResolver struct {
	configs map[string]*flagging.FlaggingConfig
}

func (s *stubResolver) Resolve(_ context.Context, testCode, _ string) (*flagging.FlaggingConfig, error) {
	return s.configs[testCode], nil
}

func newService(repo *mockRepo, orders *mockOrderRepo, flags FlagResolver, b broker.Broker) *Service {
	return NewService(repo, orders, flags, b, "lab.core", zerolog.New(io.Discard))
}

func envelope(orderID uuid.UUID) *Envelope {
	v := 7.2
	return &Envelope{
		SchemaVersion: SchemaVersion,
		OrderID:       orderID,
		Instrument:    "SIM-HEM-01",
		PerformedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Items: []RawResultItem{
			{Code: "WBC", NumericValue: &v, Unit: "10^9/L", ReferenceRange: "4 - 10", Status: "Normal"},
		},
	}
}

func marshal(t *testing.T, env *Envelope) []byte {
	t.Helper()
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return b
}

func TestRelayStagesAndForwards(t *testing.T) {
	repo := newMockRepo()
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(repo, newMockOrderRepo(), &stubResolver{}, b)

	env := envelope(uuid.New())
	if err := svc.Relay("lab.raw-results")(context.Background(), marshal(t, env)); err != nil {
		t.Fatalf("relay: %v", err)
	}

	if _, ok := repo.staged[env.Key()]; !ok {
		t.Error("envelope not staged")
	}
	if b.Depth("lab.core") != 1 {
		t.Errorf("lab queue depth = %d, want 1", b.Depth("lab.core"))
	}
}

func TestRelayMalformedBodyIsDeadLettered(t *testing.T) {
	repo := newMockRepo()
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(repo, newMockOrderRepo(), &stubResolver{}, b)

	// nil error means ack: the message must not be redelivered forever.
	if err := svc.Relay("lab.raw-results")(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("expected ack for malformed body, got %v", err)
	}
	if len(repo.deadLetter) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(repo.deadLetter))
	}
	if b.Depth("lab.core") != 0 {
		t.Error("malformed body must not be relayed")
	}
}

func TestRelayUnsupportedSchemaVersion(t *testing.T) {
	repo := newMockRepo()
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(repo, newMockOrderRepo(), &stubResolver{}, b)

	env := envelope(uuid.New())
	env.SchemaVersion = 99
	if err := svc.Relay("lab.raw-results")(context.Background(), marshal(t, env)); err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
	if len(repo.deadLetter) != 1 {
		t.Fatal("expected dead letter for unsupported schema version")
	}
}

func TestRelayAcceptsEnvelopeWithoutSchemaVersion(t *testing.T) {
	repo := newMockRepo()
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(repo, newMockOrderRepo(), &stubResolver{}, b)

	// Older instruments omit schemaVersion entirely; that means version 1.
	env := envelope(uuid.New())
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(marshal(t, env), &raw); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	delete(raw, "schemaVersion")
	body, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	if err := svc.Relay("lab.raw-results")(context.Background(), body); err != nil {
		t.Fatalf("relay: %v", err)
	}

	if len(repo.deadLetter) != 0 {
		t.Fatalf("dead letters = %d, version-less envelope must be accepted", len(repo.deadLetter))
	}
	if _, ok := repo.staged[env.Key()]; !ok {
		t.Error("envelope not staged")
	}
	if b.Depth("lab.core") != 1 {
		t.Errorf("lab queue depth = %d, want 1", b.Depth("lab.core"))
	}
}

func TestRelayDuplicateStillForwards(t *testing.T) {
	repo := newMockRepo()
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(repo, newMockOrderRepo(), &stubResolver{}, b)

	body := marshal(t, envelope(uuid.New()))
	h := svc.Relay("lab.raw-results")
	if err := h(context.Background(), body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := h(context.Background(), body); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if len(repo.staged) != 1 {
		t.Errorf("staged rows = %d, want 1", len(repo.staged))
	}
	// The forward may have been lost the first time; the core dedupes.
	if b.Depth("lab.core") != 2 {
		t.Errorf("lab queue depth = %d, want 2", b.Depth("lab.core"))
	}
}

func TestRelayStoreFailureNacks(t *testing.T) {
	repo := newMockRepo()
	repo.stageErr = errors.New("connection refused")
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(repo, newMockOrderRepo(), &stubResolver{}, b)

	if err := svc.Relay("lab.raw-results")(context.Background(), marshal(t, envelope(uuid.New()))); err == nil {
		t.Fatal("expected error so the broker redelivers")
	}
	if b.Depth("lab.core") != 0 {
		t.Error("failed staging must not forward")
	}
}

func TestApplyWritesResultsAndCompletesOrder(t *testing.T) {
	orders := newMockOrderRepo()
	id := uuid.New()
	orders.orders[id] = &order.TestOrder{ID: id, Status: order.StatusPending}

	flags := &stubResolver{configs: map[string]*flagging.FlaggingConfig{
		"WBC": {TestCode: "WBC", MinValue: 8.0, MaxValue: 12.0, Active: true, Version: 1},
	}}
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(newMockRepo(), orders, flags, b)

	if err := svc.Apply("lab.core")(context.Background(), marshal(t, envelope(id))); err != nil {
		t.Fatalf("apply: %v", err)
	}

	results := orders.results[id]
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	// Instrument said Normal; the active config grades 7.2 as Low.
	if results[0].Status != "Low" {
		t.Errorf("status = %s, want Low", results[0].Status)
	}
	if orders.orders[id].Status != order.StatusCompleted {
		t.Errorf("order status = %s, want %s", orders.orders[id].Status, order.StatusCompleted)
	}
}

func TestApplyKeepsInstrumentStatusWithoutConfig(t *testing.T) {
	orders := newMockOrderRepo()
	id := uuid.New()
	orders.orders[id] = &order.TestOrder{ID: id, Status: order.StatusPending}
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(newMockRepo(), orders, &stubResolver{}, b)

	if err := svc.Apply("lab.core")(context.Background(), marshal(t, envelope(id))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := orders.results[id][0].Status; got != "Normal" {
		t.Errorf("status = %s, want instrument-provided Normal", got)
	}
}

func TestApplyUnknownOrderIsDeadLettered(t *testing.T) {
	repo := newMockRepo()
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(repo, newMockOrderRepo(), &stubResolver{}, b)

	if err := svc.Apply("lab.core")(context.Background(), marshal(t, envelope(uuid.New()))); err != nil {
		t.Fatalf("expected ack for unknown order, got %v", err)
	}
	if len(repo.deadLetter) != 1 {
		t.Fatal("expected dead letter for unknown order")
	}
}

func TestApplyRedeliveryDoesNotDuplicateResults(t *testing.T) {
	orders := newMockOrderRepo()
	id := uuid.New()
	orders.orders[id] = &order.TestOrder{ID: id, Status: order.StatusPending}
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(newMockRepo(), orders, &stubResolver{}, b)

	body := marshal(t, envelope(id))
	h := svc.Apply("lab.core")
	if err := h(context.Background(), body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := h(context.Background(), body); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if len(orders.results[id]) != 1 {
		t.Fatalf("results = %d after redelivery, want 1", len(orders.results[id]))
	}
}

func TestApplyPreservesReviewedStatus(t *testing.T) {
	orders := newMockOrderRepo()
	id := uuid.New()
	orders.orders[id] = &order.TestOrder{ID: id, Status: order.StatusReviewedByAI}
	b := broker.NewMemoryBroker()
	defer b.Close()
	svc := newService(newMockRepo(), orders, &stubResolver{}, b)

	if err := svc.Apply("lab.core")(context.Background(), marshal(t, envelope(id))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if orders.orders[id].Status != order.StatusReviewedByAI {
		t.Errorf("status = %s, reviewed order must keep its status", orders.orders[id].Status)
	}
}
