package packetsock

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/xid"
)

// Handler is the interface for handling accepted packet channels.
// Handle is called on its own goroutine for each channel and owns it until
// returning; the server closes the channel afterwards.
type Handler interface {
	Handle(ch *Channel)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ch *Channel)

func (f HandlerFunc) Handle(ch *Channel) {
	f(ch)
}

// Server listens on a stream socket and builds a packet channel for every
// accepted connection. All channels share the server's directional MTUs.
type Server struct {
	listener net.Listener
	logger   Logger

	sendMTU     int
	recvMTU     int
	channelOpts []Option

	shutdownTimeout time.Duration

	channels *xsync.MapOf[string, *Channel]

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server waits up to this duration before
// closing the listener and the remaining channels. Call Close() to bypass
// the timeout. Default is 0 (immediate shutdown).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// ServerChannelOption appends options applied to every accepted channel,
// after the server defaults, so they can override the logger, the fault
// handler, or the queue depth.
func ServerChannelOption(opt ...Option) ServerOption {
	return func(s *Server) {
		s.channelOpts = append(s.channelOpts, opt...)
	}
}

// NewServer creates a server listening on the given stream address. For
// "unix" networks a stale socket file at the address is removed first.
// Returns an error if an MTU is out of range or the address cannot be bound.
func NewServer(network, address string, sendMTU, recvMTU int, opts ...ServerOption) (*Server, error) {
	if !validMTU(sendMTU) || !validMTU(recvMTU) {
		return nil, ErrInvalidMTU
	}

	if network == "unix" {
		if err := os.RemoveAll(address); err != nil {
			return nil, errors.Wrap(err, "remove stale socket")
		}
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s %s", network, address)
	}

	s := &Server{
		listener:    listener,
		logger:      defaultLogger(),
		sendMTU:     sendMTU,
		recvMTU:     recvMTU,
		channels:    xsync.NewMapOf[string, *Channel](),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve accepts connections and dispatches a packet channel per connection
// to the handler. It blocks until the context is canceled or an
// unrecoverable accept error occurs. On shutdown the listener is closed
// first, then every channel still tracked by the server.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr(),
		"send_mtu", s.sendMTU, "recv_mtu", s.recvMTU)

	// Close the listener once the context is canceled, honoring the
	// configured shutdown timeout unless Close() bypasses it.
	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.closeChannels()
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.dispatch(conn, handler)
	}
}

// dispatch builds a channel on the accepted connection and hands it to the
// handler on its own goroutine.
func (s *Server) dispatch(conn net.Conn, handler Handler) {
	id := xid.New().String()
	remote := conn.RemoteAddr()

	opt := append([]Option{
		LoggerOption(s.logger),
		OnFaultOption(func(err error) {
			s.logger.Error("channel fault", "channel", id, "remote", remote, "error", err)
		}),
	}, s.channelOpts...)

	var opts options
	for _, o := range opt {
		o(&opts)
	}
	if err := checkOptions(&opts); err != nil {
		s.logger.Error("invalid channel options", "channel", id, "error", err)
		_ = conn.Close()
		return
	}

	ch := newChannel(conn, s.sendMTU, s.recvMTU, opts)
	s.channels.Store(id, ch)
	s.logger.Debug("accepted channel", "channel", id, "remote", remote)

	go func() {
		defer func() {
			s.channels.Delete(id)
			_ = ch.Close()
		}()
		handler.Handle(ch)
	}()
}

// closeChannels closes every channel the server still tracks.
func (s *Server) closeChannels() {
	s.channels.Range(func(id string, ch *Channel) bool {
		_ = ch.Close()
		s.channels.Delete(id)
		return true
	})
}

// ActiveChannels returns the number of channels currently tracked.
func (s *Server) ActiveChannels() int {
	return s.channels.Size()
}

// Close stops the server by closing the underlying listener, bypassing any
// pending graceful-shutdown timeout. Blocked Accept calls return an error.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
