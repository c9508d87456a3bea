package reliability

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"pokeprotocol/internal/wire"

	"github.com/stretchr/testify/require"
)

// fakeAddr satisfies net.Addr without touching a real socket.
type fakeAddr string

func (f fakeAddr) Network() string { return "fake" }
func (f fakeAddr) String() string  { return string(f) }

// loopbackPair wires two Layers through a pair of connected UDP sockets
// on localhost so HandleInbound/Send exercise real net.PacketConn I/O.
func loopbackPair(t *testing.T, deliverA, deliverB DeliverFunc) (*Layer, *Layer, net.Addr, net.Addr) {
	t.Helper()
	connA, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	connB, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { connA.Close(); connB.Close() })

	layerA := New(connA, deliverA, func(uint32, wire.Type, net.Addr) {}, nil, nil)
	layerB := New(connB, deliverB, func(uint32, wire.Type, net.Addr) {}, nil, nil)

	go pump(t, connA, layerA)
	go pump(t, connB, layerB)

	return layerA, layerB, connB.LocalAddr(), connA.LocalAddr()
}

func pump(t *testing.T, conn net.PacketConn, l *Layer) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		l.HandleInbound(data, addr)
	}
}

// TestSendDeliversAndIsAcked is P2 (at-least-once delivery) in the
// single-send, no-loss case: the message is delivered exactly once and
// the sender's pending table drains once the ACK arrives.
func TestSendDeliversAndIsAcked(t *testing.T) {
	var mu sync.Mutex
	var got wire.Message
	delivered := make(chan struct{}, 1)

	layerA, _, addrB, _ := loopbackPair(t, nil, func(sender net.Addr, msg wire.Message) {
		mu.Lock()
		got = msg
		mu.Unlock()
		delivered <- struct{}{}
	})

	seq, err := layerA.Send(addrB, wire.NewAttackAnnounce(0, "Thunderbolt", true))
	require.NoError(t, err)

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("message was never delivered")
	}

	mu.Lock()
	require.Equal(t, wire.TypeAttackAnnounce, got.Type)
	require.Equal(t, seq, got.Seq)
	mu.Unlock()

	require.Eventually(t, func() bool {
		return layerA.PendingCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "pending entry never cleared by ACK")
}

// TestDuplicateNotRedelivered is property P1: resending the same
// (sender, seq) must never be delivered upward twice.
func TestDuplicateNotRedelivered(t *testing.T) {
	var count int
	var mu sync.Mutex

	layerB := New(&discardConn{}, nil, nil, nil, nil)
	sender := fakeAddr("peer:1")

	deliver := func(net.Addr, wire.Message) {
		mu.Lock()
		count++
		mu.Unlock()
	}
	layerB.onDeliver = deliver

	msg := wire.NewAttackAnnounce(5, "Ember", false)
	data := wire.Encode(msg)

	layerB.HandleInbound(data, sender)
	layerB.HandleInbound(data, sender)
	layerB.HandleInbound(data, sender)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count)
}

// TestUnknownTypeStillAckedNeverDelivered exercises spec.md §7's unknown-
// message-type handling: it must be ACKed (so the sender's retransmitter
// stops) but never delivered upward.
func TestUnknownTypeStillAckedNeverDelivered(t *testing.T) {
	delivered := false
	conn := &discardConn{}
	layerB := New(conn, func(net.Addr, wire.Message) { delivered = true }, nil, nil, nil)

	data := []byte("type:FUTURE_MESSAGE\nsequence_number:9\nfoo:bar\n")
	layerB.HandleInbound(data, fakeAddr("peer:1"))

	require.False(t, delivered)
	require.Len(t, conn.writes, 1)

	ackMsg, err := wire.Decode(conn.writes[0])
	require.NoError(t, err)
	require.Equal(t, wire.TypeAck, ackMsg.Type)
	ackedSeq, err := ackMsg.AckSeq()
	require.NoError(t, err)
	require.Equal(t, uint32(9), ackedSeq)
}

// TestRetransmitLoopGivesUpAfterMaxRetries exercises the bounded-retry
// ConnectionFailed path without waiting out the real 500ms interval —
// tick() is driven directly with a synthetic clock.
func TestRetransmitLoopGivesUpAfterMaxRetries(t *testing.T) {
	var failedSeq uint32
	var failedKind wire.Type
	failed := make(chan struct{}, 1)

	conn := &discardConn{}
	layer := New(conn, nil, func(seq uint32, kind wire.Type, dest net.Addr) {
		failedSeq = seq
		failedKind = kind
		failed <- struct{}{}
	}, nil, nil)

	dest := fakeAddr("peer:1")
	seq, err := layer.Send(dest, wire.NewAttackAnnounce(0, "Tackle", false))
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i <= maxRetries; i++ {
		layer.tick(base.Add(time.Duration(i+1) * (retransmitInterval + time.Millisecond)))
	}

	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("onFailure was never called")
	}

	require.Equal(t, seq, failedSeq)
	require.Equal(t, wire.TypeAttackAnnounce, failedKind)
	require.Equal(t, 0, layer.PendingCount())
	// One initial send plus maxRetries resends.
	require.Equal(t, 1+maxRetries, len(conn.writes))
}

// TestRetransmitLoopStopsOnContextCancel exercises the wiring between
// RetransmitLoop and its context, not the retry arithmetic covered above.
func TestRetransmitLoopStopsOnContextCancel(t *testing.T) {
	layer := New(&discardConn{}, nil, func(uint32, wire.Type, net.Addr) {}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		layer.RetransmitLoop(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RetransmitLoop did not return after cancel")
	}
}

// discardConn is a minimal net.PacketConn fake that records writes and
// never yields a read, used for tests that don't need a real loopback
// socket pair.
type discardConn struct {
	mu     sync.Mutex
	writes [][]byte
	block  chan struct{}
}

func (c *discardConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if c.block == nil {
		c.block = make(chan struct{})
	}
	<-c.block
	return 0, nil, nil
}

func (c *discardConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	c.writes = append(c.writes, cp)
	return len(p), nil
}

func (c *discardConn) Close() error                       { return nil }
func (c *discardConn) LocalAddr() net.Addr                { return fakeAddr("local") }
func (c *discardConn) SetDeadline(t time.Time) error       { return nil }
func (c *discardConn) SetReadDeadline(t time.Time) error   { return nil }
func (c *discardConn) SetWriteDeadline(t time.Time) error  { return nil }
