package battle

import "fmt"

// InvalidUserCommandError is spec.md §7's InvalidUserCommand: the user
// tried to attack with an unknown move, out of turn, or before setup
// completed. The battle state is left unchanged.
type InvalidUserCommandError struct {
	Reason string
}

func (e *InvalidUserCommandError) Error() string {
	return fmt.Sprintf("battle: invalid command: %s", e.Reason)
}

// UnexpectedPhaseMessage is logged, not returned as a hard error — a
// message that doesn't match the current phase is ACKed by the
// reliability layer and silently dropped by the state machine per
// spec.md §4.5. HandleMessage surfaces it so callers can log it
// verbosely under --verbose without treating it as fatal.
type UnexpectedPhaseMessage struct {
	Phase Phase
	Got   string
}

func (e *UnexpectedPhaseMessage) Error() string {
	return fmt.Sprintf("battle: message %s unexpected in phase %s", e.Got, e.Phase)
}
