package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRoundTrip is property P7: decode(encode(m)) == m for every message
// kind in the type table.
func TestRoundTrip(t *testing.T) {
	cases := []Message{
		NewHandshakeRequest(1, "Bob"),
		NewHandshakeResponse(1, "Alice", 12345),
		NewSpectatorRequest(1, "Watcher"),
		NewBattleSetup(2, "Pikachu", 35, 5, 5),
		NewAttackAnnounce(3, "Thunderbolt", true),
		NewDefenseAnnounce(3, false),
		NewCalculationReport(4, 40, 10),
		NewCalculationConfirm(5),
		NewResolutionRequest(4, 41, 9),
		NewGameOver(6, "Pikachu", "Charmander"),
		NewAck(7),
	}

	for _, want := range cases {
		t.Run(string(want.Type), func(t *testing.T) {
			got, err := Decode(Encode(want))
			require.NoError(t, err)
			require.Equal(t, want.Type, got.Type)
			require.Equal(t, want.Seq, got.Seq)
			for _, f := range want.fields {
				v, ok := got.Get(f.Key)
				require.True(t, ok, "missing field %s", f.Key)
				require.Equal(t, f.Value, v)
			}
		})
	}

	chat, err := NewChatText(8, "Alice", "gg")
	require.NoError(t, err)
	got, err := Decode(Encode(chat))
	require.NoError(t, err)
	require.Equal(t, chat, got)

	sticker := NewChatSticker(9, "Alice", []byte{0x89, 0x50, 0x4e, 0x47})
	got, err = Decode(Encode(sticker))
	require.NoError(t, err)
	payload, _ := got.Get("payload")
	decoded, err := DecodeStickerPayload(payload)
	require.NoError(t, err)
	require.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, decoded)
}

func TestEncodeTypeFirstAndDocumentedOrder(t *testing.T) {
	msg := NewAttackAnnounce(7, "Thunderbolt", false)
	data := Encode(msg)

	want := "type:ATTACK_ANNOUNCE\nsequence_number:7\nmove:Thunderbolt\nuse_sp_atk_boost:false\n"
	require.Equal(t, want, string(data))
}

func TestEncodeACKHasNoSequenceNumberField(t *testing.T) {
	data := Encode(NewAck(7))
	require.Equal(t, "type:ACK\nack:7\n", string(data))
}

func TestDecodeAcceptsMissingTrailingNewline(t *testing.T) {
	data := []byte("type:ACK\nack:7")
	m, err := Decode(data)
	require.NoError(t, err)
	seq, err := m.AckSeq()
	require.NoError(t, err)
	require.Equal(t, uint32(7), seq)
}

func TestDecodeUnknownKeysPreservedAsExtraFields(t *testing.T) {
	data := []byte("type:ATTACK_ANNOUNCE\nsequence_number:1\nmove:Tackle\nuse_sp_atk_boost:false\nclient_version:9.9\n")
	m, err := Decode(data)
	require.NoError(t, err)
	v, ok := m.Get("client_version")
	require.True(t, ok)
	require.Equal(t, "9.9", v)

	// Re-encoding preserves the unknown field after the documented ones.
	out := Encode(m)
	require.Equal(t, string(data), string(out))
}

func TestDecodeUnknownTypeStillExposesSequenceNumber(t *testing.T) {
	data := []byte("type:FUTURE_MESSAGE\nsequence_number:42\nfoo:bar\n")
	m, err := Decode(data)

	var unknownType *UnknownTypeError
	require.True(t, errors.As(err, &unknownType))
	require.Equal(t, uint32(42), m.Seq)
}

func TestDecodeMalformedDatagramDropsSilently(t *testing.T) {
	_, err := Decode([]byte("not a key value line"))
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))

	_, err = Decode([]byte(""))
	require.True(t, errors.As(err, &decodeErr))

	_, err = Decode([]byte("type:ATTACK_ANNOUNCE\nsequence_number:1\n"))
	require.True(t, errors.As(err, &decodeErr), "missing required field should be a DecodeError")
}

func TestChatTextRejectsEmbeddedNewline(t *testing.T) {
	_, err := NewChatText(1, "Alice", "line1\nline2")
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestAckIgnoresUnknownSequence(t *testing.T) {
	// Decode must still succeed for an ACK regardless of whether the
	// referenced sequence number is tracked anywhere — that bookkeeping
	// belongs to the reliability layer, not the codec.
	m, err := Decode([]byte("type:ACK\nack:999\n"))
	require.NoError(t, err)
	seq, err := m.AckSeq()
	require.NoError(t, err)
	require.Equal(t, uint32(999), seq)
}
