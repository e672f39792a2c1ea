// Package netsrv owns the raw TCP side of a login session: accepting
// connections, framing reads off the wire into netmsg.Inbound buffers,
// verifying the Adler-32 checksum (or stepping back over it when it
// wasn't one), and serializing writes, while the decryption and
// authentication semantics live one layer up in internal/protocol.
package netsrv

import (
	"context"
	"hash/adler32"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bravecorp/pwo-login-server/internal/logging"
	"github.com/bravecorp/pwo-login-server/internal/netmsg"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 30 * time.Second
)

// ProtocolHandler is the subset of internal/protocol.Protocol a
// Connection drives. internal/protocol reaches the connection through its
// own protocol.Conn interface (this package's Connection satisfies it),
// and netsrv reaches the protocol through this narrow interface, so
// neither package imports the other. Exported so the
// wiring code that constructs both a Connection and its Protocol (see
// NewProtocol) can name it.
type ProtocolHandler interface {
	Authenticate(ctx context.Context, msg *netmsg.Inbound)
	ParsePacket(msg *netmsg.Inbound)
}

// Connection is one accepted TCP session: a socket, its read buffer, and
// the protocol state machine layered on top. Reads happen only on the
// goroutine running Serve; writes are safe from any goroutine.
type Connection struct {
	id       uint64
	conn     net.Conn
	registry *Registry
	log      logging.Logger

	inbound       *netmsg.Inbound
	protocol      ProtocolHandler
	receivedFirst bool

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func newConnection(id uint64, conn net.Conn, registry *Registry, log logging.Logger) *Connection {
	return &Connection{
		id:       id,
		conn:     conn,
		registry: registry,
		log:      log,
		inbound:  netmsg.NewInbound(),
	}
}

// ID returns the connection's registry-assigned id.
func (c *Connection) ID() uint64 { return c.id }

// SetProtocol binds the protocol state machine driving this connection.
// Called once, right after construction, by whatever accepted it — split
// from newConnection because the protocol layer needs a live Conn to be
// constructed against in the first place.
func (c *Connection) SetProtocol(p ProtocolHandler) {
	c.protocol = p
}

// RemoteIP returns the connection's remote IPv4 address in network byte
// order, or 0 if it can't be determined, mirroring Connection::getIP.
func (c *Connection) RemoteIP() uint32 {
	addr, ok := c.conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return 0
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}

// Serve runs the read loop until the connection closes or ctx is
// cancelled: header, body, checksum, dispatch to the protocol layer,
// repeat. Mirrors Connection::accept/parseHeader/parsePacket chained
// through async callbacks, collapsed into one synchronous loop since Go
// gives every connection its own goroutine instead of a shared reactor.
func (c *Connection) Serve(ctx context.Context) {
	defer c.Close()

	for {
		if ctx.Err() != nil {
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, err := io.ReadFull(c.conn, c.inbound.HeaderBuffer()); err != nil {
			return
		}

		size := c.inbound.LengthHeader()
		if size == 0 || int(size) >= netmsg.MaxSize-16 {
			return
		}
		c.inbound.SetLength(size + netmsg.HeaderLength)

		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		body := c.inbound.BodyBuffer(int(size))
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return
		}

		c.closeMu.Lock()
		closed := c.closed
		c.closeMu.Unlock()
		if closed {
			return
		}

		c.dispatchPacket(ctx)
	}
}

func (c *Connection) dispatchPacket(ctx context.Context) {
	remaining := int(c.inbound.Length()) - int(c.inbound.Position()) - netmsg.ChecksumLength

	var checksum uint32
	if remaining > 0 {
		start := int(c.inbound.Position()) + netmsg.ChecksumLength
		checksum = adler32.Checksum(c.inbound.Buffer()[start : start+remaining])
	}

	recvChecksum := c.inbound.GetU32()
	if recvChecksum != checksum {
		// It might not have been the checksum after all; step back.
		c.inbound.SkipBytes(-netmsg.ChecksumLength)
	}

	if c.receivedFirst {
		c.protocol.ParsePacket(c.inbound)
	} else {
		c.receivedFirst = true
		c.inbound.SkipBytes(1) // protocol id
		c.protocol.Authenticate(ctx, c.inbound)
	}
}

// Write sends a fully framed message, safe to call concurrently with
// Serve's reads and with other writers.
func (c *Connection) Write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.conn.Write(b); err != nil {
		c.Close()
		return err
	}
	return nil
}

// Close shuts down the socket and releases the connection from its
// registry. Idempotent, safe to call from any goroutine and any number
// of times, mirroring Connection::close's guard on m_closed.
func (c *Connection) Close() error {
	c.registry.release(c)

	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
