package netsrv

import (
	"context"
	"errors"
	"net"

	"github.com/bravecorp/pwo-login-server/internal/logging"
)

// NewProtocol builds the protocol state machine for a newly accepted
// connection. Supplied by the caller so netsrv never has to import
// internal/protocol.
type NewProtocol func(conn *Connection) ProtocolHandler

// Acceptor runs the listener loop: one goroutine blocked in Accept,
// spawning a goroutine per connection to run its read loop. Mirrors the
// accept side of Server, minus boost::asio's reactor — Go's goroutine
// scheduler is the reactor here.
type Acceptor struct {
	listener net.Listener
	registry *Registry
	newProto NewProtocol
	log      logging.Logger
}

// NewAcceptor wraps an already-bound listener.
func NewAcceptor(listener net.Listener, registry *Registry, newProto NewProtocol, log logging.Logger) *Acceptor {
	if log == nil {
		log = logging.Nop()
	}
	return &Acceptor{listener: listener, registry: registry, newProto: newProto, log: log}
}

// Run accepts connections until ctx is cancelled or the listener is
// closed, spawning Connection.Serve on its own goroutine for each one.
// Mirrors Server::onAccept: a connection whose remote IP can't be
// determined is closed immediately instead of being served.
func (a *Acceptor) Run(ctx context.Context) {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			a.log.Log(logging.LevelWarn, "accept failed", "err", err)
			continue
		}

		// Mirrors Server::open's `no_delay(true)` acceptor option: Go has
		// no equivalent listener-level knob, so it's set per accepted
		// socket instead, covering every connection either way.
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		c := a.registry.Create(conn)
		if c.RemoteIP() == 0 {
			c.Close()
			continue
		}
		c.SetProtocol(a.newProto(c))
		go c.Serve(ctx)
	}
}

// Close stops accepting new connections.
func (a *Acceptor) Close() error {
	return a.listener.Close()
}
