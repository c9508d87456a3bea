package wire

// Type is the value of a message's mandatory "type" field.
type Type string

const (
	TypeHandshakeRequest   Type = "HANDSHAKE_REQUEST"
	TypeHandshakeResponse  Type = "HANDSHAKE_RESPONSE"
	TypeSpectatorRequest   Type = "SPECTATOR_REQUEST"
	TypeBattleSetup        Type = "BATTLE_SETUP"
	TypeAttackAnnounce     Type = "ATTACK_ANNOUNCE"
	TypeDefenseAnnounce    Type = "DEFENSE_ANNOUNCE"
	TypeCalculationReport  Type = "CALCULATION_REPORT"
	TypeCalculationConfirm Type = "CALCULATION_CONFIRM"
	TypeResolutionRequest  Type = "RESOLUTION_REQUEST"
	TypeGameOver           Type = "GAME_OVER"
	TypeChatMessage        Type = "CHAT_MESSAGE"
	TypeAck                Type = "ACK"
)

// ContentType values for CHAT_MESSAGE.
const (
	ContentText    = "TEXT"
	ContentSticker = "STICKER"
)

// requiredFields documents, per type, the fields beyond type/sequence_number
// and their wire order — spec.md §4.2's table. Encode emits these first (in
// this order) so logs stay readable; Decode uses the same table to check a
// known message carries everything it must.
var requiredFields = map[Type][]string{
	TypeHandshakeRequest:   {"name"},
	TypeHandshakeResponse:  {"name", "seed"},
	TypeSpectatorRequest:   {"name"},
	TypeBattleSetup:        {"pokemon", "hp", "sp_atk_uses", "sp_def_uses"},
	TypeAttackAnnounce:     {"move", "use_sp_atk_boost"},
	TypeDefenseAnnounce:    {"use_sp_def_boost"},
	TypeCalculationReport:  {"damage", "defender_hp_after"},
	TypeCalculationConfirm: {},
	TypeResolutionRequest:  {"damage", "defender_hp_after"},
	TypeGameOver:           {"winner", "loser"},
	TypeChatMessage:        {"content_type", "from", "payload"},
	TypeAck:                {"ack"},
}

// KnownType reports whether t is one of the message kinds spec.md §4.2
// defines.
func KnownType(t Type) bool {
	_, ok := requiredFields[t]
	return ok
}

type field struct {
	Key, Value string
}

// Message is a decoded or in-construction key:value frame. It keeps
// fields in insertion order so round-tripped extra/unknown fields survive
// unchanged (spec.md §4.2: "unknown keys are preserved as extra fields").
type Message struct {
	Type   Type
	Seq    uint32 // meaningless (and omitted on the wire) for TypeAck
	fields []field
}

// New starts a message of the given type and sequence number with no
// extra fields set yet.
func New(t Type, seq uint32) Message {
	return Message{Type: t, Seq: seq}
}

// Set assigns a field value, overwriting any existing value for key and
// otherwise appending it after the last-set field.
func (m *Message) Set(key, value string) {
	for i := range m.fields {
		if m.fields[i].Key == key {
			m.fields[i].Value = value
			return
		}
	}
	m.fields = append(m.fields, field{key, value})
}

// Get returns a field's value and whether it was present.
func (m Message) Get(key string) (string, bool) {
	for _, f := range m.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// GetBool parses a field as "true"/"false"; missing or unparsable values
// are treated as false, matching the boost-flag "silently treated as
// false" fallback in spec.md §4.5.
func (m Message) GetBool(key string) bool {
	v, ok := m.Get(key)
	return ok && v == "true"
}

// SetBool is a convenience wrapper around Set for boolean fields.
func (m *Message) SetBool(key string, value bool) {
	if value {
		m.Set(key, "true")
	} else {
		m.Set(key, "false")
	}
}

// requiredOrder returns the field emission order for m.Type, or nil for
// an unrecognized type (extra/unknown fields still round-trip via the
// insertion-order fallback in Encode).
func requiredOrder(t Type) []string {
	return requiredFields[t]
}
