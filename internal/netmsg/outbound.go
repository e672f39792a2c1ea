package netmsg

import (
	"encoding/binary"
	"hash/adler32"
)

// Outbound is a fixed-capacity message buffer built forward from offset 8
// and finalized by prepending headers: inner length, checksum, outer
// length. Composition over NetworkMessage, not inheritance, per the
// "inheritance of message buffers becomes composition" design note —
// Outbound holds its own buffer/info pair rather than embedding Inbound.
type Outbound struct {
	buf   [MaxSize]byte
	info  info
	start uint16 // shrinks as headers are prepended; never goes below zero
}

// NewOutbound returns an Outbound with its body cursor at the standard
// start-of-payload offset.
func NewOutbound() *Outbound {
	o := &Outbound{}
	o.Reset()
	return o
}

// Reset rewinds the buffer for reuse.
func (o *Outbound) Reset() {
	o.info = info{position: InitialPosition}
	o.start = InitialPosition
}

func (o *Outbound) canAdd(size int) bool {
	return size+int(o.info.position) < MaxBodyLength
}

// AddByte appends a single byte.
func (o *Outbound) AddByte(v uint8) {
	if !o.canAdd(1) {
		return
	}
	o.buf[o.info.position] = v
	o.info.position++
	o.info.length++
}

// AddU16 appends a little-endian uint16.
func (o *Outbound) AddU16(v uint16) {
	if !o.canAdd(2) {
		return
	}
	binary.LittleEndian.PutUint16(o.buf[o.info.position:], v)
	o.info.position += 2
	o.info.length += 2
}

// AddU32 appends a little-endian uint32.
func (o *Outbound) AddU32(v uint32) {
	if !o.canAdd(4) {
		return
	}
	binary.LittleEndian.PutUint32(o.buf[o.info.position:], v)
	o.info.position += 4
	o.info.length += 4
}

// AddU64 appends a little-endian uint64.
func (o *Outbound) AddU64(v uint64) {
	if !o.canAdd(8) {
		return
	}
	binary.LittleEndian.PutUint64(o.buf[o.info.position:], v)
	o.info.position += 8
	o.info.length += 8
}

// AddString appends a u16-length-prefixed string, refusing (silently, per
// the original) anything longer than 8192 bytes.
func (o *Outbound) AddString(v string) {
	n := len(v)
	if !o.canAdd(n+2) || n > maxStringLength {
		return
	}
	o.AddU16(uint16(n))
	copy(o.buf[o.info.position:], v)
	o.info.position += uint16(n)
	o.info.length += uint16(n)
}

// AddBytes appends a raw block, refusing anything longer than 8192 bytes.
func (o *Outbound) AddBytes(v []byte) {
	n := len(v)
	if !o.canAdd(n) || n > maxStringLength {
		return
	}
	copy(o.buf[o.info.position:], v)
	o.info.position += uint16(n)
	o.info.length += uint16(n)
}

// AddPadding appends n bytes of 0x33 fill, used to round a body up to an
// XTEA block boundary.
func (o *Outbound) AddPadding(n int) {
	if !o.canAdd(n) {
		return
	}
	for i := 0; i < n; i++ {
		o.buf[int(o.info.position)+i] = PaddingByte
	}
	o.info.length += uint16(n)
}

// Length returns the logical payload length written so far (headers not
// yet included).
func (o *Outbound) Length() uint16 {
	return o.info.length
}

// Body returns the payload written between the start-of-body offset and
// the current write position, i.e. what XTEA encryption operates on.
func (o *Outbound) Body() []byte {
	return o.buf[InitialPosition : InitialPosition+o.info.length]
}

// SetBodyLength overwrites the logical length, used after encryption pads
// the body out to a block boundary.
func (o *Outbound) SetBodyLength(n uint16) {
	o.info.length = n
}

func (o *Outbound) addHeaderU16(v uint16) {
	o.start -= 2
	binary.LittleEndian.PutUint16(o.buf[o.start:], v)
	o.info.length += 2
}

func (o *Outbound) addHeaderU32(v uint32) {
	o.start -= 4
	binary.LittleEndian.PutUint32(o.buf[o.start:], v)
	o.info.length += 4
}

// WriteMessageLength prepends the 2-byte inner length field
// (OutputMessage::writeMessageLength).
func (o *Outbound) WriteMessageLength() {
	o.addHeaderU16(o.info.length)
}

// AddCryptoHeader prepends the Adler-32 checksum over the ciphertext and
// then the outer length covering everything after it
// (OutputMessage::addCryptoHeader).
func (o *Outbound) AddCryptoHeader() {
	checksum := adler32.Checksum(o.buf[o.start : int(o.start)+int(o.info.length)])
	o.addHeaderU32(checksum)
	o.WriteMessageLength()
}

// OutputBuffer returns the live region from the current header start to the
// current length. It serves two callers at different points in the same
// pipeline: XTEA encryption calls it between WriteMessageLength and
// AddCryptoHeader to get the plaintext-that-becomes-ciphertext (inner
// length field + body), and the connection's write path calls it after
// AddCryptoHeader to get the fully framed bytes ready for the socket.
func (o *Outbound) OutputBuffer() []byte {
	return o.buf[o.start : int(o.start)+int(o.info.length)]
}
