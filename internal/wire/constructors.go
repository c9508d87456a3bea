package wire

import "strconv"

// NewHandshakeRequest builds the joiner's opening message.
func NewHandshakeRequest(seq uint32, name string) Message {
	m := New(TypeHandshakeRequest, seq)
	m.Set("name", name)
	return m
}

// NewHandshakeResponse builds the host's reply carrying the shared seed.
func NewHandshakeResponse(seq uint32, name string, seed uint32) Message {
	m := New(TypeHandshakeResponse, seq)
	m.Set("name", name)
	m.Set("seed", strconv.FormatUint(uint64(seed), 10))
	return m
}

// NewSpectatorRequest builds a read-only observer's join request.
func NewSpectatorRequest(seq uint32, name string) Message {
	m := New(TypeSpectatorRequest, seq)
	m.Set("name", name)
	return m
}

// NewBattleSetup builds a combatant's setup announcement.
func NewBattleSetup(seq uint32, pokemon string, hp, spAtkUses, spDefUses int) Message {
	m := New(TypeBattleSetup, seq)
	m.Set("pokemon", pokemon)
	m.Set("hp", strconv.Itoa(hp))
	m.Set("sp_atk_uses", strconv.Itoa(spAtkUses))
	m.Set("sp_def_uses", strconv.Itoa(spDefUses))
	return m
}

// NewAttackAnnounce builds the attacker's move selection.
func NewAttackAnnounce(seq uint32, move string, useSpAtkBoost bool) Message {
	m := New(TypeAttackAnnounce, seq)
	m.Set("move", move)
	m.SetBool("use_sp_atk_boost", useSpAtkBoost)
	return m
}

// NewDefenseAnnounce builds the defender's boost decision.
func NewDefenseAnnounce(seq uint32, useSpDefBoost bool) Message {
	m := New(TypeDefenseAnnounce, seq)
	m.SetBool("use_sp_def_boost", useSpDefBoost)
	return m
}

// NewCalculationReport builds a computed-damage report.
func NewCalculationReport(seq uint32, damage, defenderHPAfter int) Message {
	m := New(TypeCalculationReport, seq)
	m.Set("damage", strconv.Itoa(damage))
	m.Set("defender_hp_after", strconv.Itoa(defenderHPAfter))
	return m
}

// NewCalculationConfirm builds the turn-closing confirmation.
func NewCalculationConfirm(seq uint32) Message {
	return New(TypeCalculationConfirm, seq)
}

// NewResolutionRequest builds a defender's discrepancy report.
func NewResolutionRequest(seq uint32, damage, defenderHPAfter int) Message {
	m := New(TypeResolutionRequest, seq)
	m.Set("damage", strconv.Itoa(damage))
	m.Set("defender_hp_after", strconv.Itoa(defenderHPAfter))
	return m
}

// NewGameOver builds the battle-ending announcement.
func NewGameOver(seq uint32, winner, loser string) Message {
	m := New(TypeGameOver, seq)
	m.Set("winner", winner)
	m.Set("loser", loser)
	return m
}

// NewChatText builds a plain-text chat message. Returns ErrInvalidPayload
// if content contains a newline.
func NewChatText(seq uint32, from, content string) (Message, error) {
	if containsNewline(content) {
		return Message{}, ErrInvalidPayload
	}
	m := New(TypeChatMessage, seq)
	m.Set("content_type", ContentText)
	m.Set("from", from)
	m.Set("payload", content)
	return m, nil
}

// NewChatSticker builds a base64-framed sticker chat message. payload is
// raw bytes; the caller never sees the base64 encoding.
func NewChatSticker(seq uint32, from string, payload []byte) Message {
	m := New(TypeChatMessage, seq)
	m.Set("content_type", ContentSticker)
	m.Set("from", from)
	m.Set("payload", encodeBase64(payload))
	return m
}

// NewAck builds the lightweight acknowledgement for seq.
func NewAck(seq uint32) Message {
	m := Message{Type: TypeAck}
	m.Set("ack", strconv.FormatUint(uint64(seq), 10))
	return m
}

// AckSeq returns the sequence number an ACK message acknowledges. Only
// valid when m.Type == TypeAck.
func (m Message) AckSeq() (uint32, error) {
	v, ok := m.Get("ack")
	if !ok {
		return 0, &DecodeError{Reason: "ACK missing ack field"}
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, &DecodeError{Reason: "ACK has non-numeric ack field"}
	}
	return uint32(n), nil
}

// Int parses a field as a decimal integer.
func (m Message) Int(key string) (int, error) {
	v, ok := m.Get(key)
	if !ok {
		return 0, &DecodeError{Reason: "missing field " + key}
	}
	return strconv.Atoi(v)
}
