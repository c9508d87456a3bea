package wire

import (
	"encoding/base64"
	"strings"
)

// encodeBase64/decodeBase64 isolate the standard-alphabet base64 framing
// spec.md §4.2 mandates for binary (sticker) payloads riding the
// otherwise-text wire format.
func encodeBase64(payload []byte) string {
	return base64.StdEncoding.EncodeToString(payload)
}

// DecodeStickerPayload base64-decodes a CHAT_MESSAGE STICKER payload
// field's value.
func DecodeStickerPayload(payload string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(payload)
}

func containsNewline(s string) bool {
	return strings.ContainsRune(s, '\n')
}
