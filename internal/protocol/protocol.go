// Package protocol implements the handshake and opcode routing layer
// that sits between a raw connection and the event registry: it decrypts
// the RSA key-exchange block, authenticates the account, assembles the
// MOTD/session-key/character-list reply, and for every later packet
// decrypts it with XTEA and hands it to the event registry keyed by its
// opcode.
package protocol

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strconv"
	"time"

	"github.com/bravecorp/pwo-login-server/internal/accountstore"
	"github.com/bravecorp/pwo-login-server/internal/cryptoutil"
	"github.com/bravecorp/pwo-login-server/internal/events"
	"github.com/bravecorp/pwo-login-server/internal/logging"
	"github.com/bravecorp/pwo-login-server/internal/netmsg"
)

// Opcode identifies the kind of message on the wire, either one of the
// handshake's own replies or, as its decimal string, the identifier a
// later client packet's onReceiveNetworkMessage emit is keyed by.
type Opcode uint8

const (
	OpAuthenticate   Opcode = 1
	OpError          Opcode = 2
	OpMotd           Opcode = 3
	OpCharacterList  Opcode = 4
	OpSessionKey     Opcode = 5
	OpPing           Opcode = 6
	OpLoadingMessage Opcode = 7
)

// authenticatorPeriod is the tick granularity the session key's trailing
// counter uses, matching AUTHENTICATOR_PERIOD.
const authenticatorPeriod = 30

// Conn is the narrow surface Protocol needs from whatever owns the raw
// socket: write a framed, pre-encrypted message, close the connection,
// and report its id. internal/netsrv's Connection implements it;
// Protocol depends only on this interface so the two packages don't
// import each other.
type Conn interface {
	Write(b []byte) error
	Close() error
	ID() uint64
}

// Config carries the configuration values authentication needs: the
// protocol version floor clients must meet, its human-readable name for
// the rejection message, and the MOTD shown on every successful login.
type Config struct {
	VersionMin  uint16
	VersionStr  string
	MotdNumber  int
	MotdMessage string
}

// Deps bundles a Protocol's collaborators: the RSA key used once per
// connection to unwrap the XTEA key, the account lookup, the event
// registry later packets are routed through, configuration, and a
// logger.
type Deps struct {
	RSAKey   *rsa.PrivateKey
	Store    accountstore.Store
	Registry *events.Registry
	Config   Config
	Logger   logging.Logger
}

// Protocol is one connection's authentication state and opcode router.
// Not safe for concurrent use from more than the connection's own read
// goroutine plus whatever dispatcher task eventually calls Send.
type Protocol struct {
	conn Conn
	deps Deps

	key      cryptoutil.Key
	account  accountstore.Account
	lastPing time.Time
}

// New returns a Protocol bound to conn, ready to authenticate the first
// packet it receives.
func New(conn Conn, deps Deps) *Protocol {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	return &Protocol{conn: conn, deps: deps}
}

// ID returns the owning connection's id.
func (p *Protocol) ID() uint64 { return p.conn.ID() }

// Account returns the authenticated account, valid only after a
// successful Authenticate.
func (p *Protocol) Account() accountstore.Account { return p.account }

// Authenticate processes the handshake's single packet: skips the OS and
// signature fields, RSA-decrypts the key exchange block, extracts the
// XTEA key, enforces the minimum protocol version, looks up the account,
// and on success replies with MOTD + session key + character list.
// Mirrors Protocol::authenticate.
func (p *Protocol) Authenticate(ctx context.Context, msg *netmsg.Inbound) {
	msg.SkipBytes(2) // operating system

	version := msg.GetU16()

	msg.SkipBytes(17) // protocolVersion(4) + dat/spr/pic signatures(12) + 1

	if !cryptoutil.DecryptBlock(p.deps.RSAKey, msg) {
		p.disconnect()
		return
	}

	p.key = cryptoutil.Key{msg.GetU32(), msg.GetU32(), msg.GetU32(), msg.GetU32()}

	if version < p.deps.Config.VersionMin {
		p.DisconnectClient(fmt.Sprintf("Only clients with protocol %s allowed!", p.deps.Config.VersionStr))
		return
	}

	email := msg.GetString()
	if email == "" {
		p.DisconnectClient("Invalid account email.")
		return
	}

	password := msg.GetString()
	if password == "" {
		p.DisconnectClient("Invalid password.")
		return
	}

	account, err := p.deps.Store.GetAccount(ctx, email, password)
	if err != nil {
		p.deps.Logger.Log(logging.LevelError, "account lookup failed", "email", email, "err", err)
		p.DisconnectClient("Invalid account email or password.")
		return
	}
	if !account.Found() {
		p.DisconnectClient("Invalid account email or password.")
		return
	}
	p.account = account

	out := netmsg.NewOutbound()
	p.addMOTD(out)
	p.addSessionKey(out)
	p.addCharacterList(out)

	if err := p.Send(out); err != nil {
		p.deps.Logger.Log(logging.LevelWarn, "failed to send login reply", "err", err)
	}
}

func (p *Protocol) addMOTD(msg *netmsg.Outbound) {
	msg.AddByte(uint8(OpMotd))
	msg.AddString(fmt.Sprintf("%d\n%s", p.deps.Config.MotdNumber, p.deps.Config.MotdMessage))
}

func (p *Protocol) addSessionKey(msg *netmsg.Outbound) {
	ticks := time.Now().Unix() / authenticatorPeriod
	msg.AddByte(uint8(OpSessionKey))
	msg.AddString(p.account.Email + "\n" + p.account.Password + "\n\n" + strconv.FormatInt(ticks, 10))
}

func (p *Protocol) addCharacterList(msg *netmsg.Outbound) {
	msg.AddByte(uint8(OpCharacterList))

	characters := p.account.Characters
	msg.AddByte(uint8(len(characters)))
	for _, c := range characters {
		msg.AddString(c.Name)
		msg.AddString(c.InstanceName)
		msg.AddString(c.InstanceID)
		msg.AddU16(c.Level)
		msg.AddByte(boolToByte(c.AutoReconnect))
	}

	// Premium days: the original always writes a literal 0 for the day
	// count before the expiry flag and timestamp.
	msg.AddByte(0)
	msg.AddByte(boolToByte(uint64(p.account.PremiumEnd) > uint64(time.Now().Unix())))
	msg.AddU32(uint32(p.account.PremiumEnd))
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// ParsePacket decrypts a post-handshake packet with the session's XTEA
// key and routes it by opcode: Ping updates the last-seen time locally,
// everything else is emitted as onReceiveNetworkMessage keyed by the
// opcode's decimal string, mirroring Protocol::parsePacket.
func (p *Protocol) ParsePacket(msg *netmsg.Inbound) {
	if !cryptoutil.Decrypt(p.key, msg) {
		return
	}

	opcode := msg.GetByte()
	if Opcode(opcode) == OpPing {
		p.lastPing = time.Now()
		return
	}

	p.deps.Registry.EmitNoRet("onReceiveNetworkMessage", strconv.Itoa(int(opcode)), "client", p, "msg", msg)
}

// EncryptMessage prepends the inner length, XTEA-encrypts the padded
// body, and prepends the checksum and outer length, mirroring
// Protocol::encryptMessage.
func (p *Protocol) EncryptMessage(msg *netmsg.Outbound) {
	msg.WriteMessageLength()
	cryptoutil.Encrypt(p.key, msg)
	msg.AddCryptoHeader()
}

// Send encrypts and writes msg to the connection.
func (p *Protocol) Send(msg *netmsg.Outbound) error {
	p.EncryptMessage(msg)
	return p.conn.Write(msg.OutputBuffer())
}

// SendError sends a framed Error opcode message carrying message.
func (p *Protocol) SendError(message string) error {
	msg := netmsg.NewOutbound()
	msg.AddByte(uint8(OpError))
	msg.AddString(message)
	return p.Send(msg)
}

// SendLoadingMessage sends a framed LoadingMessage opcode message.
func (p *Protocol) SendLoadingMessage(message string) error {
	msg := netmsg.NewOutbound()
	msg.AddByte(uint8(OpLoadingMessage))
	msg.AddString(message)
	return p.Send(msg)
}

// DisconnectClient sends an error reply and then closes the connection.
func (p *Protocol) DisconnectClient(message string) {
	if err := p.SendError(message); err != nil {
		p.deps.Logger.Log(logging.LevelWarn, "failed to send disconnect reason", "err", err)
	}
	p.disconnect()
}

func (p *Protocol) disconnect() {
	if err := p.conn.Close(); err != nil {
		p.deps.Logger.Log(logging.LevelWarn, "error closing connection", "err", err)
	}
}
