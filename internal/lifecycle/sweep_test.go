package lifecycle

import (
	"context"
	"testing"
	"time"

	"maintenance-platform/internal/audit"
)

func TestAutoConfirmOverdue_ConfirmsExpiredWindows(t *testing.T) {
	svc, store, clock, _, auditRepo := newTestService()
	ctx := context.Background()

	overdue := completedRequest(t, svc)
	clock.Advance(DefaultConfirmWindow + time.Hour)
	fresh := completedRequest(t, svc)

	n, err := svc.AutoConfirmOverdue(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 auto-confirmation, got %d", n)
	}

	got, _ := store.GetRequest(ctx, overdue.ID)
	if got.Status != StatusClosed || got.ConfirmationStatus != ConfirmationConfirmed {
		t.Fatalf("overdue request not auto-confirmed: %+v", got)
	}
	if got.CustomerConfirmedAt == nil {
		t.Fatalf("auto-confirmation must record a confirmation time")
	}

	untouched, _ := store.GetRequest(ctx, fresh.ID)
	if untouched.Status != StatusCompleted || untouched.ConfirmationStatus != ConfirmationPending {
		t.Fatalf("fresh window must survive the sweep: %+v", untouched)
	}

	hist, _ := store.StatusHistory(ctx, overdue.ID)
	last := hist[len(hist)-1]
	if last.ActorID != SystemActorID || last.Reason != "auto-confirmed after timeout" {
		t.Fatalf("unexpected sweep history entry: %+v", last)
	}

	found := false
	for _, e := range auditRepo.Events() {
		if e.Type == audit.EventTypeAutoConfirm && e.RequestID == overdue.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the auto-confirmation to be audit-logged")
	}
}

func TestAutoConfirmOverdue_Idempotent(t *testing.T) {
	svc, store, clock, _, _ := newTestService()
	ctx := context.Background()

	r := completedRequest(t, svc)
	clock.Advance(DefaultConfirmWindow + time.Hour)

	if n, err := svc.AutoConfirmOverdue(ctx); err != nil || n != 1 {
		t.Fatalf("first sweep: n=%d err=%v", n, err)
	}
	before, _ := store.StatusHistory(ctx, r.ID)

	if n, err := svc.AutoConfirmOverdue(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep must be a no-op: n=%d err=%v", n, err)
	}
	after, _ := store.StatusHistory(ctx, r.ID)
	if len(after) != len(before) {
		t.Fatalf("second sweep added history entries: %d -> %d", len(before), len(after))
	}
}

func TestAutoConfirmOverdue_LosesToCustomerAction(t *testing.T) {
	svc, store, clock, _, _ := newTestService()
	ctx := context.Background()

	r := completedRequest(t, svc)
	clock.Advance(DefaultConfirmWindow + time.Hour)

	// The customer resolves just before the sweep lands.
	if _, err := svc.RejectCompletion(ctx, customer, r.ID, "still broken", ""); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if n, err := svc.AutoConfirmOverdue(ctx); err != nil || n != 0 {
		t.Fatalf("sweep must not override a customer resolution: n=%d err=%v", n, err)
	}
	got, _ := store.GetRequest(ctx, r.ID)
	if got.Status != StatusCustomerRejected || got.ConfirmationStatus != ConfirmationRejected {
		t.Fatalf("customer resolution lost: %+v", got)
	}
}

func TestAutoConfirm_DistinguishedFromOverride(t *testing.T) {
	svc, store, clock, _, _ := newTestService()
	ctx := context.Background()

	auto := completedRequest(t, svc)
	overridden := completedRequest(t, svc)

	if _, err := svc.CloseWithoutConfirmation(ctx, admin, overridden.ID, "customer unreachable"); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	clock.Advance(DefaultConfirmWindow + time.Hour)
	if _, err := svc.AutoConfirmOverdue(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	a, _ := store.GetRequest(ctx, auto.ID)
	o, _ := store.GetRequest(ctx, overridden.ID)
	if a.ConfirmationStatus != ConfirmationConfirmed || a.ClosedWithoutConfirmation {
		t.Fatalf("timeout confirmation must read as CONFIRMED: %+v", a)
	}
	if o.ConfirmationStatus != ConfirmationOverridden || !o.ClosedWithoutConfirmation {
		t.Fatalf("admin override must read as OVERRIDDEN: %+v", o)
	}
}

// stubGate counts acquisitions and answers a fixed verdict.
type stubGate struct {
	allow bool
	calls int
}

func (g *stubGate) TryAcquire(ctx context.Context) (bool, error) {
	g.calls++
	return g.allow, nil
}

func TestSweeper_GateDeniedSkipsCycle(t *testing.T) {
	svc, store, clock, _, _ := newTestService()
	r := completedRequest(t, svc)
	clock.Advance(DefaultConfirmWindow + time.Hour)

	gate := &stubGate{allow: false}
	s := &Sweeper{Engine: svc, Interval: time.Hour, Gate: gate}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if gate.calls == 0 {
		t.Fatalf("expected the gate to be consulted")
	}
	got, _ := store.GetRequest(context.Background(), r.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("denied gate must skip the sweep: %+v", got)
	}
}

func TestSweeper_RunSweepsImmediately(t *testing.T) {
	svc, store, clock, _, _ := newTestService()
	r := completedRequest(t, svc)
	clock.Advance(DefaultConfirmWindow + time.Hour)

	gate := &stubGate{allow: true}
	s := &Sweeper{Engine: svc, Interval: time.Hour, Gate: gate}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	// Run sweeps once before waiting on the ticker, so cancelling right away
	// still observes the first cycle.
	cancel()
	<-done

	got, _ := store.GetRequest(context.Background(), r.ID)
	if got.Status != StatusClosed || got.ConfirmationStatus != ConfirmationConfirmed {
		t.Fatalf("expected the immediate sweep to auto-confirm: %+v", got)
	}
}
