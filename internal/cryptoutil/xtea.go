package cryptoutil

import (
	"encoding/binary"

	"github.com/bravecorp/pwo-login-server/internal/netmsg"
)

// xteaDelta is the two's-complement negation of the usual XTEA round
// constant 0x9E3779B9 (floor(2^32 / golden ratio)), so subtracting it
// advances sum by that constant.
const xteaDelta = 0x61C88647

// Key is the 128-bit XTEA key exchanged during the handshake, as four
// 32-bit words in the order the cipher consumes them.
type Key [4]uint32

// Encrypt pads msg's body out to an 8-byte boundary with 0x33 filler, then
// encrypts it in place, 32 rounds per 8-byte block. Mirrors
// XTEA::encrypt: sum starts at zero and walks down by delta each round,
// v0 is updated before v1.
func Encrypt(key Key, msg *netmsg.Outbound) {
	if padding := msg.Length() % 8; padding != 0 {
		msg.AddPadding(8 - int(padding))
	}

	buf := msg.OutputBuffer()
	encryptBlocks(key, buf)
}

func encryptBlocks(key Key, buf []byte) {
	for readPos := 0; readPos+8 <= len(buf); readPos += 8 {
		v0 := binary.LittleEndian.Uint32(buf[readPos:])
		v1 := binary.LittleEndian.Uint32(buf[readPos+4:])

		var sum uint32
		for i := 32; i > 0; i-- {
			v0 += ((v1<<4 ^ v1>>5) + v1) ^ (sum + key[sum&3])
			sum -= xteaDelta
			v1 += ((v0<<4 ^ v0>>5) + v0) ^ (sum + key[(sum>>11)&3])
		}

		binary.LittleEndian.PutUint32(buf[readPos:], v0)
		binary.LittleEndian.PutUint32(buf[readPos+4:], v1)
	}
}

// Decrypt decrypts msg's body in place starting at its current read
// cursor, then consumes the 2-byte inner length the plaintext begins
// with and applies it as the message's new logical length. Mirrors
// XTEA::decrypt: sum starts at 0xC6EF3720 and walks up by delta each
// round, v1 is updated before v0.
func Decrypt(key Key, msg *netmsg.Inbound) bool {
	if (int(msg.Length())-6)&7 != 0 {
		return false
	}

	messageLength := int(msg.Length()) - 6
	buf := msg.CipherRegion(messageLength)
	decryptBlocks(key, buf)

	innerLength := msg.GetU16()
	if int(innerLength) > int(msg.Length())-8 {
		return false
	}

	msg.SetLength(innerLength)
	return true
}

func decryptBlocks(key Key, buf []byte) {
	for readPos := 0; readPos+8 <= len(buf); readPos += 8 {
		v0 := binary.LittleEndian.Uint32(buf[readPos:])
		v1 := binary.LittleEndian.Uint32(buf[readPos+4:])

		sum := uint32(0xC6EF3720)
		for i := 32; i > 0; i-- {
			v1 -= ((v0<<4 ^ v0>>5) + v0) ^ (sum + key[(sum>>11)&3])
			sum += xteaDelta
			v0 -= ((v1<<4 ^ v1>>5) + v1) ^ (sum + key[sum&3])
		}

		binary.LittleEndian.PutUint32(buf[readPos:], v0)
		binary.LittleEndian.PutUint32(buf[readPos+4:], v1)
	}
}
