package tenancy

import "context"

type ctxKey string

const (
	clinicKey ctxKey = "bookinglink.clinic_id"
	actorKey  ctxKey = "bookinglink.actor_id"
	roleKey   ctxKey = "bookinglink.role"
)

// Roles carried in auth tokens. Staff can manage schedules and rules,
// patients can only book and view their own appointments.
const (
	RoleStaff   = "staff"
	RolePatient = "patient"
)

// WithClinicID stores the clinic id in context.
func WithClinicID(ctx context.Context, clinicID string) context.Context {
	return context.WithValue(ctx, clinicKey, clinicID)
}

// ClinicIDFromContext extracts the clinic id if present.
func ClinicIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(clinicKey)
	if val == nil {
		return "", false
	}
	clinicID, ok := val.(string)
	return clinicID, ok && clinicID != ""
}

// WithActor stores the authenticated subject and role in context.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, actorKey, actorID)
	return context.WithValue(ctx, roleKey, role)
}

// ActorFromContext extracts the authenticated subject if present.
func ActorFromContext(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(actorKey).(string)
	return actorID, ok && actorID != ""
}

// RoleFromContext extracts the actor's role if present.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleKey).(string)
	return role, ok && role != ""
}
