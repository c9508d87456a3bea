// Package reliability implements spec.md §4.3: per-peer sequence
// numbers, ACKs, 500ms/3-retry retransmission, and (sender, seq)
// deduplication on top of a net.PacketConn. It is modeled on the
// teacher's protocol.Session — a mutex-guarded struct holding a pending
// map and ACK/NACK queues, drained by a ticker goroutine separate from
// the socket reader — with the RakNet-specific binary datagram framing
// and split-packet/MTU machinery (which this protocol, one message per
// datagram, doesn't need) replaced by the wire package's text codec.
package reliability

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"pokeprotocol/internal/metrics"
	"pokeprotocol/internal/wire"

	"github.com/sirupsen/logrus"
)

const (
	maxRetries          = 3
	retransmitInterval  = 500 * time.Millisecond
	tickInterval        = 100 * time.Millisecond
)

// DeliverFunc is called for each newly-delivered (never a duplicate,
// never ACK, never unknown-type) inbound message.
type DeliverFunc func(sender net.Addr, msg wire.Message)

// FailureFunc is called when a pending send exhausts its retries —
// spec.md §7's ConnectionFailed(seq, kind).
type FailureFunc func(seq uint32, kind wire.Type, dest net.Addr)

type outbound struct {
	seq         uint32
	payload     []byte
	dest        net.Addr
	sendTime    time.Time
	retriesLeft int
	kind        wire.Type
}

// Layer is one peer's reliability state: the outbound sequence counter,
// the pending-ACK table, and the per-sender dedup window. One Layer is
// shared by the battle state machine and the chat sink; it does not know
// about battle phases at all (spec.md §4.3's layering).
type Layer struct {
	conn net.PacketConn

	mu      sync.Mutex
	nextSeq uint32
	pending map[uint32]*outbound

	dedupMu sync.Mutex
	dedup   map[string]*dedupSet

	onDeliver DeliverFunc
	onFailure FailureFunc

	metrics *metrics.Metrics
	log     *logrus.Entry
}

// New constructs a Layer bound to conn. onDeliver and onFailure are
// called synchronously from the goroutine that observed the event
// (socket reader for onDeliver, retransmit ticker for onFailure) — both
// should return quickly. Layer holds none of its own locks while calling
// them, so they may call Send.
func New(conn net.PacketConn, onDeliver DeliverFunc, onFailure FailureFunc, m *metrics.Metrics, log *logrus.Entry) *Layer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Layer{
		conn:      conn,
		pending:   make(map[uint32]*outbound),
		dedup:     make(map[string]*dedupSet),
		onDeliver: onDeliver,
		onFailure: onFailure,
		metrics:   m,
		log:       log,
	}
}

// Send assigns the next outbound sequence number to msg, transmits it,
// and tracks it in pending until ACKed or abandoned. Non-blocking from
// the caller's perspective: the UDP write itself never blocks.
func (l *Layer) Send(dest net.Addr, msg wire.Message) (uint32, error) {
	l.mu.Lock()
	seq := l.nextSeq
	l.nextSeq++
	msg.Seq = seq
	payload := wire.Encode(msg)
	l.pending[seq] = &outbound{
		seq: seq, payload: payload, dest: dest,
		sendTime: time.Now(), retriesLeft: maxRetries, kind: msg.Type,
	}
	pendingCount := len(l.pending)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.PendingGauge.Set(float64(pendingCount))
	}
	return seq, l.write(payload, dest, msg.Type, seq)
}

func (l *Layer) write(payload []byte, dest net.Addr, kind wire.Type, seq uint32) error {
	_, err := l.conn.WriteTo(payload, dest)
	if err != nil {
		l.log.WithFields(logrus.Fields{"seq": seq, "type": kind, "dest": dest}).
			Warn("write failed")
		return err
	}
	if l.metrics != nil {
		l.metrics.DatagramsSent.Inc()
	}
	l.log.WithFields(logrus.Fields{"seq": seq, "type": kind, "dest": dest}).Debug("sent")
	return nil
}

// HandleInbound implements spec.md §4.3's five-step inbound algorithm:
// decode, ACK-handling, always-ACK, dedup, deliver.
func (l *Layer) HandleInbound(data []byte, sender net.Addr) {
	if l.metrics != nil {
		l.metrics.DatagramsReceived.Inc()
	}

	msg, err := wire.Decode(data)

	var decodeErr *wire.DecodeError
	if errors.As(err, &decodeErr) {
		l.log.WithField("sender", sender).Debug("dropping malformed datagram")
		return
	}

	if msg.Type == wire.TypeAck {
		if ackSeq, aerr := msg.AckSeq(); aerr == nil {
			l.resolveAck(ackSeq)
		}
		return
	}

	// Step 3: always ACK, duplicate or not, known type or not.
	l.sendAck(msg.Seq, sender)

	var unknownErr *wire.UnknownTypeError
	if errors.As(err, &unknownErr) {
		l.log.WithFields(logrus.Fields{"sender": sender, "type": msg.Type}).
			Debug("acked unknown message type, not delivering")
		return
	}

	if l.markSeen(sender, msg.Seq) {
		if l.metrics != nil {
			l.metrics.DuplicatesDropped.Inc()
		}
		l.log.WithFields(logrus.Fields{"sender": sender, "seq": msg.Seq}).
			Debug("duplicate, not re-delivering")
		return
	}

	l.onDeliver(sender, msg)
}

func (l *Layer) resolveAck(seq uint32) {
	l.mu.Lock()
	_, existed := l.pending[seq]
	delete(l.pending, seq)
	pendingCount := len(l.pending)
	l.mu.Unlock()

	if !existed {
		return // unknown ACK, ignored per spec.md §4.3
	}
	if l.metrics != nil {
		l.metrics.PendingGauge.Set(float64(pendingCount))
	}
}

func (l *Layer) sendAck(seq uint32, dest net.Addr) {
	payload := wire.Encode(wire.NewAck(seq))
	_, err := l.conn.WriteTo(payload, dest)
	if err != nil {
		l.log.WithFields(logrus.Fields{"seq": seq, "dest": dest}).Warn("failed to send ACK")
		return
	}
	if l.metrics != nil {
		l.metrics.DatagramsSent.Inc()
	}
}

// markSeen reports whether (sender, seq) had already been delivered, and
// records it either way.
func (l *Layer) markSeen(sender net.Addr, seq uint32) (duplicate bool) {
	key := sender.String()

	l.dedupMu.Lock()
	defer l.dedupMu.Unlock()

	set, ok := l.dedup[key]
	if !ok {
		set = newDedupSet()
		l.dedup[key] = set
	}
	if set.contains(seq) {
		return true
	}
	set.add(seq)
	return false
}

// RetransmitLoop scans pending every tickInterval until ctx is canceled,
// resending entries past their deadline and declaring ConnectionFailed
// for those that exhaust maxRetries. It is the teacher's updateLoop
// ticker goroutine, generalized from RakNet's Session.Update to this
// protocol's pending map.
func (l *Layer) RetransmitLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.tick(now)
		}
	}
}

func (l *Layer) tick(now time.Time) {
	var toResend, toFail []*outbound

	l.mu.Lock()
	for seq, ob := range l.pending {
		if now.Sub(ob.sendTime) < retransmitInterval {
			continue
		}
		if ob.retriesLeft > 0 {
			ob.retriesLeft--
			ob.sendTime = now
			toResend = append(toResend, ob)
		} else {
			toFail = append(toFail, ob)
			delete(l.pending, seq)
		}
	}
	pendingCount := len(l.pending)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.PendingGauge.Set(float64(pendingCount))
	}

	for _, ob := range toResend {
		if l.metrics != nil {
			l.metrics.DatagramsRetransmitted.Inc()
		}
		l.log.WithFields(logrus.Fields{"seq": ob.seq, "type": ob.kind, "retries_left": ob.retriesLeft}).
			Debug("retransmitting")
		l.write(ob.payload, ob.dest, ob.kind, ob.seq)
	}
	for _, ob := range toFail {
		if l.metrics != nil {
			l.metrics.DatagramsAbandoned.Inc()
		}
		l.log.WithFields(logrus.Fields{"seq": ob.seq, "type": ob.kind}).
			Warn("abandoning after exhausting retries")
		l.onFailure(ob.seq, ob.kind, ob.dest)
	}
}

// PendingCount reports how many outbound messages currently await an
// ACK. Exposed for tests and for diagnostics.
func (l *Layer) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
