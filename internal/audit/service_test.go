package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{ActorUserID: "u"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdminOverride(context.Background(), "u", "SUPER_ADMIN", "req1", "customer unreachable"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Type != EventTypeAdminOverride {
		t.Fatalf("expected admin_override, got %s", evs[0].Type)
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled in")
	}
	if evs[0].RequestID != "req1" {
		t.Fatalf("expected request id captured")
	}
}

func TestService_LogAutoConfirmMessage(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAutoConfirm(context.Background(), "system", "req2"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].Message != "auto-confirmed after timeout" {
		t.Fatalf("expected fixed audit reason, got %+v", evs)
	}
}
