package wire

import (
	"strconv"
	"strings"
)

// Encode serializes m as lines of key:value, "type" first, then the
// documented field order for m.Type, then any remaining fields in the
// order they were set. A trailing newline is always emitted; Decode
// accepts input with or without one (spec.md §4.2).
func Encode(m Message) []byte {
	var b strings.Builder
	b.WriteString("type:")
	b.WriteString(string(m.Type))
	b.WriteByte('\n')

	if m.Type != TypeAck {
		b.WriteString("sequence_number:")
		b.WriteString(strconv.FormatUint(uint64(m.Seq), 10))
		b.WriteByte('\n')
	}

	written := make(map[string]bool, len(m.fields))
	for _, key := range requiredOrder(m.Type) {
		if v, ok := m.Get(key); ok {
			b.WriteString(key)
			b.WriteByte(':')
			b.WriteString(v)
			b.WriteByte('\n')
			written[key] = true
		}
	}
	for _, f := range m.fields {
		if written[f.Key] {
			continue
		}
		b.WriteString(f.Key)
		b.WriteByte(':')
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Decode parses a datagram payload into a Message. It returns
// (Message, *DecodeError) for structurally malformed input — the caller
// should drop the datagram silently. It returns (Message, *UnknownTypeError)
// for a structurally valid message whose type isn't recognized; the
// returned Message is still populated enough (Type, Seq) for the
// reliability layer to ACK it before discarding it.
func Decode(data []byte) (Message, error) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return Message{}, &DecodeError{Reason: "empty message"}
	}

	key, value, ok := splitKV(lines[0])
	if !ok || key != "type" {
		return Message{}, &DecodeError{Reason: "first line is not a type field"}
	}
	msgType := Type(value)

	var fields []field
	for _, line := range lines[1:] {
		k, v, ok := splitKV(line)
		if !ok {
			return Message{}, &DecodeError{Reason: "malformed key:value line " + strconv.Quote(line)}
		}
		fields = append(fields, field{k, v})
	}

	m := Message{Type: msgType, fields: fields}

	if msgType == TypeAck {
		if _, ok := m.Get("ack"); !ok {
			return Message{}, &DecodeError{Reason: "ACK missing ack field"}
		}
		return m, nil
	}

	seqStr, ok := m.Get("sequence_number")
	if !ok {
		return Message{}, &DecodeError{Reason: "missing sequence_number"}
	}
	seq, err := strconv.ParseUint(seqStr, 10, 32)
	if err != nil {
		return Message{}, &DecodeError{Reason: "bad sequence_number: " + err.Error()}
	}
	m.Seq = uint32(seq)
	m.removeField("sequence_number")

	if !KnownType(msgType) {
		return m, &UnknownTypeError{Type: msgType}
	}

	for _, req := range requiredFields[msgType] {
		if _, ok := m.Get(req); !ok {
			return Message{}, &DecodeError{Reason: "message type " + string(msgType) + " missing required field " + req}
		}
	}

	return m, nil
}

func (m *Message) removeField(key string) {
	for i, f := range m.fields {
		if f.Key == key {
			m.fields = append(m.fields[:i], m.fields[i+1:]...)
			return
		}
	}
}

func splitLines(data []byte) []string {
	s := strings.TrimRight(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func splitKV(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}
