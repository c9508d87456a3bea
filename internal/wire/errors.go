package wire

import "fmt"

// DecodeError means a datagram's bytes could not be parsed into a
// well-formed key:value message at all (spec.md §7: "malformed incoming
// datagram. Action: drop silently."). Callers should not ACK or act on a
// message that failed to decode this way.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode error: %s", e.Reason)
}

// UnknownTypeError means the message parsed structurally but its "type"
// value isn't one spec.md §4.2 defines. Message is still populated (Type,
// Seq, and whatever fields were present) so the reliability layer can
// still ACK sequence_number — it just must not deliver the message
// upward (spec.md §7).
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("wire: unknown message type %q", e.Type)
}

// ErrInvalidPayload is returned by NewChatText when a CHAT_MESSAGE TEXT
// payload contains a literal newline, which would corrupt the line-oriented frame
// (spec.md §9 Open Question, resolved by forbidding '\n' in TEXT values).
var ErrInvalidPayload = fmt.Errorf("wire: chat payload must not contain a newline")
