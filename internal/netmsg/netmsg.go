// Package netmsg implements the login server's framed wire buffers: a
// fixed-capacity inbound buffer with typed reads and overrun latching, and
// an outbound buffer that grows its header backwards as layers are added.
package netmsg

const (
	// MaxSize is the total capacity of a wire buffer, headers included.
	MaxSize = 24590

	// HeaderLength is the size of the outer, unencrypted length prefix.
	HeaderLength = 2
	// ChecksumLength is the size of the Adler-32 checksum field.
	ChecksumLength = 4
	// xteaMultiple is the block size XTEA bodies must be padded to.
	xteaMultiple = 8

	// InitialPosition is where a buffer's body starts: 2 bytes outer
	// length, 4 bytes checksum, 2 bytes inner length.
	InitialPosition = 8

	// MaxBodyLength bounds how much payload a single message may carry.
	MaxBodyLength = MaxSize - HeaderLength - ChecksumLength - xteaMultiple

	// maxStringLength is the ceiling addString/addBytes enforce.
	maxStringLength = 8192

	// PaddingByte is the fill value used to pad bodies to an XTEA block
	// boundary.
	PaddingByte = 0x33
)

// info mirrors NetworkMessage::NetworkMessageInfo.
type info struct {
	length   uint16
	position uint16
	overrun  bool
}
