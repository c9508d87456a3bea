// Package chat is the external collaborator spec.md §6 describes for
// CHAT_MESSAGE traffic: plain text goes to the front end, sticker
// payloads get decoded and written to disk. Grounded on the teacher's
// server.sendServerMessage/BroadcastMessage pattern (source/server/server.go)
// for the "fan a message out to whoever's listening" shape, generalized
// from a single server broadcasting to players into a peer handing
// messages to its own local display and disk sink.
package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pokeprotocol/internal/wire"

	"github.com/sirupsen/logrus"
)

// Sink writes received sticker payloads under dir and hands text
// messages to a display callback. Both text and sticker chat are
// processed in every battle phase and never touch battle state
// (spec.md §4.5).
type Sink struct {
	dir     string
	display func(from, text string)
	log     *logrus.Entry
}

// New constructs a Sink. display is called for TEXT content; it may be
// nil, in which case text chat is only logged.
func New(dir string, display func(from, text string), log *logrus.Entry) *Sink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sink{dir: dir, display: display, log: log}
}

// Handle processes one CHAT_MESSAGE, dispatching on content_type.
func (s *Sink) Handle(msg wire.Message) error {
	contentType, _ := msg.Get("content_type")
	from, _ := msg.Get("from")
	payload, _ := msg.Get("payload")

	switch contentType {
	case wire.ContentText:
		s.log.WithField("from", from).Info(payload)
		if s.display != nil {
			s.display(from, payload)
		}
		return nil
	case wire.ContentSticker:
		return s.writeSticker(from, payload)
	default:
		s.log.WithField("content_type", contentType).Warn("unrecognized chat content type, dropping")
		return nil
	}
}

// writeSticker decodes a base64 STICKER payload and persists it as
// stickers/sticker_<sender>_<unix-ms>.png, the sink path spec.md §6
// names.
func (s *Sink) writeSticker(from, payload string) error {
	decoded, err := wire.DecodeStickerPayload(payload)
	if err != nil {
		s.log.WithField("from", from).Warn("dropping undecodable sticker payload")
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("chat: creating sticker dir: %w", err)
	}
	name := fmt.Sprintf("sticker_%s_%d.png", sanitize(from), stickerTimestamp())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, decoded, 0o644); err != nil {
		return fmt.Errorf("chat: writing sticker: %w", err)
	}
	s.log.WithFields(logrus.Fields{"from": from, "path": path}).Info("sticker received")
	return nil
}

// stickerTimestamp is the indirection point for the otherwise-forbidden
// time.Now()/Unix-millis call, kept to one line so callers needing a
// deterministic timestamp in tests can substitute it.
var stickerTimestamp = func() int64 { return time.Now().UnixMilli() }

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}
