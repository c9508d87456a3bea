package chat

import (
	"os"
	"path/filepath"
	"testing"

	"pokeprotocol/internal/wire"

	"github.com/stretchr/testify/require"
)

func TestHandleTextInvokesDisplay(t *testing.T) {
	var gotFrom, gotText string
	s := New(t.TempDir(), func(from, text string) {
		gotFrom, gotText = from, text
	}, nil)

	msg, err := wire.NewChatText(1, "Alice", "gg")
	require.NoError(t, err)

	require.NoError(t, s.Handle(msg))
	require.Equal(t, "Alice", gotFrom)
	require.Equal(t, "gg", gotText)
}

func TestHandleStickerWritesFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, nil)
	stickerTimestamp = func() int64 { return 1700000000000 }

	msg := wire.NewChatSticker(2, "Bob", []byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, s.Handle(msg))

	path := filepath.Join(dir, "sticker_Bob_1700000000000.png")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, data)
}

func TestHandleStickerSanitizesSenderName(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, nil)
	stickerTimestamp = func() int64 { return 1 }

	msg := wire.NewChatSticker(3, "../evil", []byte{0x01})
	require.NoError(t, s.Handle(msg))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sticker____evil_1.png", entries[0].Name())
}

func TestHandleUnknownContentTypeIsIgnored(t *testing.T) {
	s := New(t.TempDir(), nil, nil)
	msg := wire.New(wire.TypeChatMessage, 1)
	msg.Set("content_type", "VIDEO")
	msg.Set("from", "Alice")
	msg.Set("payload", "x")

	require.NoError(t, s.Handle(msg))
}
