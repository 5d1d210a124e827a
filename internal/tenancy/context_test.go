package tenancy

import (
	"context"
	"testing"
)

func TestWithClinicIDAndClinicIDFromContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithClinicID(ctx, "clinic-123")

	got, ok := ClinicIDFromContext(ctx)
	if !ok {
		t.Fatalf("expected clinic id to be present")
	}
	if got != "clinic-123" {
		t.Fatalf("expected clinic-123, got %s", got)
	}
}

func TestClinicIDFromContext_EmptyOrMissing(t *testing.T) {
	ctx := context.Background()
	if _, ok := ClinicIDFromContext(ctx); ok {
		t.Fatalf("expected missing clinic id to return false")
	}

	ctx = context.WithValue(ctx, clinicKey, 42)
	if _, ok := ClinicIDFromContext(ctx); ok {
		t.Fatalf("expected non-string clinic id to return false")
	}

	ctx = WithClinicID(context.Background(), "")
	if _, ok := ClinicIDFromContext(ctx); ok {
		t.Fatalf("expected empty clinic id to return false")
	}
}

func TestWithActor(t *testing.T) {
	ctx := WithActor(context.Background(), "user-1", RoleStaff)

	actor, ok := ActorFromContext(ctx)
	if !ok || actor != "user-1" {
		t.Fatalf("expected actor user-1, got %q (%v)", actor, ok)
	}
	role, ok := RoleFromContext(ctx)
	if !ok || role != RoleStaff {
		t.Fatalf("expected role staff, got %q (%v)", role, ok)
	}
}

func TestActorFromContext_Missing(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatalf("expected missing actor to return false")
	}
	if _, ok := RoleFromContext(context.Background()); ok {
		t.Fatalf("expected missing role to return false")
	}
}
