package booking

import "errors"

var (
	// ErrInvalidSlot indicates the requested slot does not exist in the
	// provider's current availability (outside working hours, misaligned
	// start, or the schedule changed since slots were shown).
	ErrInvalidSlot = errors.New("booking: requested slot is not available on the provider's schedule")

	// ErrSlotConflict indicates the slot was taken by a competing booking.
	ErrSlotConflict = errors.New("booking: requested slot is no longer available")

	// ErrRuleViolation indicates a clinic booking rule rejected the attempt.
	ErrRuleViolation = errors.New("booking: booking rule violated")

	// ErrInvalidRequest indicates a malformed booking request.
	ErrInvalidRequest = errors.New("booking: invalid request")
)
