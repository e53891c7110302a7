package realtime

import "errors"

var (
	// ErrAccessDenied is returned when an actor attempts a gated control
	// action without the host or moderator role. No state is mutated and
	// nothing is broadcast.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidTarget is returned when a control action references a
	// participant with no active session in the room.
	ErrInvalidTarget = errors.New("no active session for target participant")

	// ErrForbiddenOperation is returned when attempting to remove the host.
	ErrForbiddenOperation = errors.New("cannot remove the host")

	// ErrInvalidRoom is returned when the room id is not a meeting id.
	ErrInvalidRoom = errors.New("invalid room id")
)

// errorCode maps a controller error to the wire-level error code sent back to
// the initiating actor.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrForbiddenOperation):
		return "forbidden_operation"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrInvalidRoom):
		return "invalid_room"
	default:
		return "internal"
	}
}
