// Package packetsock provides a duplex packet channel over stream sockets.
// A byte stream has no message boundaries; this package imposes them with a
// length-prefixed wire format and recovers whole packets on the far side,
// with bounded memory per channel and backpressure from the transport up to
// the caller.
package packetsock

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Channel is a duplex packet connection over a stream socket. Packets up to
// the per-direction MTU are delivered whole, in order, or not at all.
//
// A channel is created with Dial or Accept and runs until Close. Any
// unrecoverable transport or protocol error is reported exactly once to the
// fault handler, after which the channel is dead and should be closed.
type Channel struct {
	conn net.Conn
	enc  *Encoder
	dec  *Decoder

	logger Logger
	opts   options

	sendMTU int
	recvMTU int

	sendq chan []byte
	recvq chan []byte

	// closed is the liveness flag: set at the start of Close, checked by
	// every code path that runs after invoking external callbacks.
	closed  atomic.Bool
	closeCh chan struct{}
	cancel  context.CancelFunc

	faultOnce sync.Once
	faulted   chan struct{}
	faultErr  error
}

// Dial connects to the given stream address ("unix" or "tcp" networks) and
// establishes a packet channel over it. sendMTU and recvMTU fix the maximum
// packet length per direction for the channel's lifetime; both must be in
// [0, MaxPayload]. A fault handler option is required.
//
// On failure nothing is retained: option and MTU validation happen before
// the connection attempt, and no channel state exists until the connection
// is established.
func Dial(network, address string, sendMTU, recvMTU int, opt ...Option) (*Channel, error) {
	opts, err := buildOptions(sendMTU, recvMTU, opt)
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s %s", network, address)
	}

	return newChannel(conn, sendMTU, recvMTU, opts), nil
}

// Accept dequeues one pending connection from the listener and establishes
// a packet channel over it. Parameters and validation are identical to
// Dial; a channel built here is indistinguishable from a dialed one.
func Accept(ln net.Listener, sendMTU, recvMTU int, opt ...Option) (*Channel, error) {
	opts, err := buildOptions(sendMTU, recvMTU, opt)
	if err != nil {
		return nil, err
	}

	conn, err := ln.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "accept")
	}

	return newChannel(conn, sendMTU, recvMTU, opts), nil
}

// buildOptions validates MTUs and options for both construction paths.
func buildOptions(sendMTU, recvMTU int, opt []Option) (options, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return opts, err
	}

	if !validMTU(sendMTU) || !validMTU(recvMTU) {
		return opts, ErrInvalidMTU
	}

	return opts, nil
}

// newChannel wires both pipelines onto a connected transport and starts
// them. Dial and Accept converge here; everything past the connection
// handshake is shared.
func newChannel(conn net.Conn, sendMTU, recvMTU int, opts options) *Channel {
	c := &Channel{
		conn:    conn,
		enc:     NewEncoder(conn, sendMTU),
		dec:     NewDecoder(conn, recvMTU),
		logger:  opts.logger,
		opts:    opts,
		sendMTU: sendMTU,
		recvMTU: recvMTU,
		sendq:   make(chan []byte, opts.bufferSize),
		recvq:   make(chan []byte, opts.bufferSize),
		closeCh: make(chan struct{}),
		faulted: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.readLoop(ctx)
	})
	group.Go(func() error {
		return c.writeLoop(ctx)
	})

	go func() {
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Debug("channel pipelines stopped", "remote", c.RemoteAddr(), "error", err)
		}
	}()

	channelsOpened.Inc()
	c.logger.Info("channel established",
		"remote", c.RemoteAddr(), "send_mtu", sendMTU, "recv_mtu", recvMTU)

	return c
}

// Send queues one outgoing packet. The packet is copied before Send
// returns, so the caller may reuse p immediately. Send blocks while the
// outgoing queue is full, which propagates transport backpressure to the
// caller; it is unblocked by ctx cancellation, a channel fault, or Close.
//
// A packet longer than the send MTU is rejected with ErrPacketTooLarge
// before anything reaches the transport.
func (c *Channel) Send(ctx context.Context, p []byte) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	if len(p) > c.sendMTU {
		return ErrPacketTooLarge
	}

	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case c.sendq <- buf:
		return nil
	case <-c.faulted:
		return c.faultErr
	case <-c.closeCh:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv delivers the next incoming packet, whole and in order. Packets that
// arrived before a fault are still delivered; once the queue is drained,
// Recv returns the fault. After Close it returns ErrChannelClosed.
func (c *Channel) Recv(ctx context.Context) ([]byte, error) {
	// Prefer pending packets over a pending fault or close.
	select {
	case p := <-c.recvq:
		return p, nil
	default:
	}

	select {
	case p := <-c.recvq:
		return p, nil
	case <-c.faulted:
		return nil, c.faultErr
	case <-c.closeCh:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the channel down: both pipelines stop and the socket is
// closed. Safe to call multiple times and, in particular, from inside the
// fault handler while the channel's own goroutines are still unwinding.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	c.cancel()
	close(c.closeCh)
	err := c.conn.Close()

	c.logger.Info("channel closed", "remote", c.RemoteAddr())
	return err
}

// IsClosed returns true if the channel has been closed.
func (c *Channel) IsClosed() bool {
	return c.closed.Load()
}

// SendMTU returns the maximum outgoing packet length.
func (c *Channel) SendMTU() int {
	return c.sendMTU
}

// RecvMTU returns the maximum incoming packet length.
func (c *Channel) RecvMTU() int {
	return c.recvMTU
}

// LocalAddr returns the local address of the underlying socket.
func (c *Channel) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote address of the underlying socket.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// reportFault funnels a stage failure into the single per-channel fault
// notification. The first report wins; later ones only return the tagged
// error. Faults observed after Close has begun are suppressed entirely.
//
// The handler runs on the reporting goroutine and may close the channel;
// nothing in here touches channel state after the handler returns.
func (c *Channel) reportFault(stage Stage, err error) error {
	fault := &Fault{Stage: stage, Err: err}

	if c.closed.Load() {
		return fault
	}

	c.faultOnce.Do(func() {
		channelFaults.Inc()
		c.logger.Debug("channel fault", "stage", stage.String(), "error", err)

		c.faultErr = fault
		close(c.faulted)

		c.opts.onFault(fault)
	})

	return fault
}

// readLoop decodes one frame at a time and delivers whole packets to the
// receive queue. Delivery blocks while the caller is behind, which stops
// socket reads and lets the transport push back on the peer.
func (c *Channel) readLoop(ctx context.Context) error {
	for {
		p, err := c.dec.Decode()
		if err != nil {
			if c.closed.Load() || ctx.Err() != nil {
				return ctx.Err()
			}

			stage := StageSource
			if errors.Is(err, ErrFrameTooLarge) || errors.Is(err, ErrPacketTooLarge) {
				stage = StageDecoder
			}
			return c.reportFault(stage, err)
		}

		framesReceived.Inc()
		bytesReceived.Add(EncodedLen(len(p)))

		select {
		case c.recvq <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeLoop pulls one packet at a time and flushes its frame completely
// before pulling the next, so at most one frame is ever in flight.
func (c *Channel) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-c.sendq:
			if err := c.enc.Encode(p); err != nil {
				if c.closed.Load() {
					return nil
				}
				return c.reportFault(StageSink, err)
			}

			framesSent.Inc()
			bytesSent.Add(EncodedLen(len(p)))
		}
	}
}
