package adopt_test

import (
	"context"
	"testing"
	"time"

	"adopt-go/internal/adopt"
	"adopt-go/internal/events"
	"adopt-go/internal/ledger"
	"adopt-go/internal/model"
	"adopt-go/internal/testutil"
	"adopt-go/internal/treasury"
)

// fixture wires a Service to in-process collaborators.
type fixture struct {
	svc      *adopt.Service
	ledger   adopt.Ledger
	failing  *testutil.FailingLedger
	treasury *treasury.MemoryTreasury
	payments *testutil.RecordingTreasury
	sink     *events.MemorySink
	clock    *testutil.StubClock
	t0       time.Time
}

func newFixture(t *testing.T, l adopt.Ledger) *fixture {
	t.Helper()

	clock := testutil.FixedClock()
	tr := treasury.NewMemoryTreasury()
	payments := testutil.NewRecordingTreasury(tr)
	sink := events.NewMemorySink()
	failing := testutil.NewFailingLedger(l)

	svc := adopt.NewService(failing, payments, testutil.StaticVerifier{}, sink, nil, clock, testutil.NewStubIDGenerator())
	return &fixture{
		svc:      svc,
		ledger:   l,
		failing:  failing,
		treasury: tr,
		payments: payments,
		sink:     sink,
		clock:    clock,
		t0:       clock.Now(),
	}
}

// forEachLedger runs fn once per Ledger implementation.
func forEachLedger(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, newFixture(t, ledger.NewMemoryLedger()))
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newFixture(t, testutil.NewTestDatabase(t)))
	})
}

// request builds a publish request whose window is given relative to the
// fixture clock's current time.
func (f *fixture) request(id string, price uint64, freezeIn, harvestIn time.Duration) adopt.PublishRequest {
	now := f.clock.Now()
	return adopt.PublishRequest{
		ID:            []byte(id),
		Price:         model.NewAmount(price),
		MinOutputKg:   10,
		FreezeAt:      now.Add(freezeIn),
		HarvestBefore: now.Add(harvestIn),
		Info:          []byte("heirloom tomatoes"),
	}
}

func (f *fixture) publish(t *testing.T, owner string, req adopt.PublishRequest) *model.Resource {
	t.Helper()
	res, err := f.svc.Publish(context.Background(), adopt.Origin(owner), req)
	if err != nil {
		t.Fatalf("Publish(%s) error = %v", req.ID, err)
	}
	return res
}

func (f *fixture) fund(t *testing.T, account string, amount uint64) {
	t.Helper()
	if err := f.treasury.Fund(context.Background(), model.AccountID(account), model.NewAmount(amount)); err != nil {
		t.Fatalf("Fund(%s) error = %v", account, err)
	}
}

func (f *fixture) balance(t *testing.T, account string) string {
	t.Helper()
	b, err := f.treasury.Balance(context.Background(), model.AccountID(account))
	if err != nil {
		t.Fatalf("Balance(%s) error = %v", account, err)
	}
	return b.String()
}

func (f *fixture) events(t *testing.T, owner, id string) []*model.ResourceEvent {
	t.Helper()
	evs, err := f.svc.Events(context.Background(), model.AccountID(owner), []byte(id))
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	return evs
}

func kinds(evs []*model.ResourceEvent) []model.EventKind {
	out := make([]model.EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func equalKinds(got []model.EventKind, want ...model.EventKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func newMemoryLedger() adopt.Ledger {
	return ledger.NewMemoryLedger()
}
