package netmsg

import "encoding/binary"

// Inbound is a fixed-capacity message buffer filled from the wire. Reads
// past the logical end latch Overrun and return the zero value instead of
// advancing past the limit, matching NetworkMessage::canRead.
type Inbound struct {
	buf  [MaxSize]byte
	info info
}

// NewInbound returns an Inbound ready to receive a header.
func NewInbound() *Inbound {
	m := &Inbound{}
	m.Reset()
	return m
}

// Reset clears length/position/overrun so the buffer can be reused for the
// next packet on the same connection.
func (m *Inbound) Reset() {
	m.info = info{position: InitialPosition}
}

// Buffer exposes the raw backing array for header reads and raw body reads.
func (m *Inbound) Buffer() []byte {
	return m.buf[:]
}

// HeaderBuffer returns the first two bytes, where the outer length lands.
func (m *Inbound) HeaderBuffer() []byte {
	return m.buf[:HeaderLength]
}

// BodyBuffer resets the cursor to just past the outer length and returns
// the slice a subsequent body read should fill, mirroring
// NetworkMessage::getBodyBuffer.
func (m *Inbound) BodyBuffer(size int) []byte {
	m.info.position = HeaderLength
	return m.buf[HeaderLength : HeaderLength+size]
}

// LengthHeader reads the raw little-endian outer length without moving the
// cursor, mirroring NetworkMessage::getLengthHeader.
func (m *Inbound) LengthHeader() uint16 {
	return binary.LittleEndian.Uint16(m.buf[:2])
}

// SetLength records the logical length of the message body that follows
// the outer header (NetworkMessage::setLength).
func (m *Inbound) SetLength(n uint16) {
	m.info.length = n
}

// Length returns the logical body length.
func (m *Inbound) Length() uint16 {
	return m.info.length
}

// Position returns the current read cursor.
func (m *Inbound) Position() uint16 {
	return m.info.position
}

// Overrun reports whether a read has crossed the readable limit. Advisory:
// callers must poll it explicitly when correctness depends on it.
func (m *Inbound) Overrun() bool {
	return m.info.overrun
}

func (m *Inbound) canRead(size int) bool {
	if m.info.position+uint16(size) > m.info.length+8 || size >= MaxSize-int(m.info.position) {
		m.info.overrun = true
		return false
	}
	return true
}

// GetByte reads one byte, or zero on overrun.
func (m *Inbound) GetByte() uint8 {
	if !m.canRead(1) {
		return 0
	}
	v := m.buf[m.info.position]
	m.info.position++
	return v
}

// GetU16 reads a little-endian uint16, or zero on overrun.
func (m *Inbound) GetU16() uint16 {
	if !m.canRead(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(m.buf[m.info.position:])
	m.info.position += 2
	return v
}

// GetU32 reads a little-endian uint32, or zero on overrun.
func (m *Inbound) GetU32() uint32 {
	if !m.canRead(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(m.buf[m.info.position:])
	m.info.position += 4
	return v
}

// GetU64 reads a little-endian uint64, or zero on overrun.
func (m *Inbound) GetU64() uint64 {
	if !m.canRead(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(m.buf[m.info.position:])
	m.info.position += 8
	return v
}

// CipherRegion returns the n bytes starting at the current read cursor
// without moving it, as a slice sharing the underlying array so a cipher
// can decrypt in place. Callers read the decrypted inner length back out
// with GetU16 afterwards.
func (m *Inbound) CipherRegion(n int) []byte {
	return m.buf[m.info.position : int(m.info.position)+n]
}

// SkipBytes advances (or rewinds, for negative count) the cursor without
// reading, mirroring NetworkMessage::skipBytes. Used to step back over a
// checksum field that turned out not to be one.
func (m *Inbound) SkipBytes(count int) {
	m.info.position = uint16(int(m.info.position) + count)
}

// GetString reads a u16-length-prefixed string, or "" on overrun.
func (m *Inbound) GetString() string {
	length := m.GetU16()
	if !m.canRead(int(length)) {
		return ""
	}
	v := string(m.buf[m.info.position : m.info.position+length])
	m.info.position += length
	return v
}

// GetBytes reads a raw block of n bytes, or nil on overrun.
func (m *Inbound) GetBytes(n int) []byte {
	if !m.canRead(n) {
		return nil
	}
	v := make([]byte, n)
	copy(v, m.buf[m.info.position:int(m.info.position)+n])
	m.info.position += uint16(n)
	return v
}
