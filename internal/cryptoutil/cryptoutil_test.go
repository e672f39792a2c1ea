package cryptoutil

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"

	"github.com/bravecorp/pwo-login-server/internal/netmsg"
)

func TestXTEARoundTrip(t *testing.T) {
	key := Key{0x11223344, 0x55667788, 0x99aabbcc, 0xddeeff00}

	out := netmsg.NewOutbound()
	out.AddString("the quick brown fox")
	out.WriteMessageLength()
	Encrypt(key, out)

	ciphertext := append([]byte(nil), out.OutputBuffer()...)

	// The connection hands Decrypt a cursor just past the outer length and
	// the checksum (offset 6), where the encrypted inner length begins.
	in := netmsg.NewInbound()
	in.SkipBytes(netmsg.HeaderLength + netmsg.ChecksumLength - netmsg.InitialPosition)
	copy(in.Buffer()[in.Position():], ciphertext)
	in.SetLength(uint16(len(ciphertext)) + 6)

	if !Decrypt(key, in) {
		t.Fatalf("Decrypt() = false, want true")
	}
	if got := in.GetString(); got != "the quick brown fox" {
		t.Fatalf("round-tripped string = %q", got)
	}
}

func TestXTEADecryptRejectsNonBlockAlignedLength(t *testing.T) {
	key := Key{1, 2, 3, 4}
	in := netmsg.NewInbound()
	in.SetLength(7) // (7-6)&7 != 0
	if Decrypt(key, in) {
		t.Fatalf("Decrypt() with misaligned length should fail")
	}
}

// rsaEncryptRaw is the inverse of DecryptBlock's raw modular exponentiation
// (c = m^E mod N), built directly so the test can construct a ciphertext
// without depending on crypto/rsa's padded encryption APIs, which this
// wire format does not use.
func rsaEncryptRaw(priv *rsa.PrivateKey, plaintext []byte) []byte {
	m := new(big.Int).SetBytes(plaintext)
	e := big.NewInt(int64(priv.E))
	c := new(big.Int).Exp(m, e, priv.N)
	out := make([]byte, blockSize)
	c.FillBytes(out)
	return out
}

func TestRSADecryptBlockRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	plaintext := make([]byte, blockSize)
	plaintext[0] = 0 // required sentinel byte
	copy(plaintext[1:17], []byte("0123456789ABCDEF"))

	ciphertext := rsaEncryptRaw(priv, plaintext)

	in := netmsg.NewInbound()
	copy(in.Buffer()[netmsg.InitialPosition:], ciphertext)
	in.SetLength(uint16(blockSize) + netmsg.InitialPosition)

	if !DecryptBlock(priv, in) {
		t.Fatalf("DecryptBlock() = false, want true")
	}

	got := in.GetBytes(16)
	if string(got) != "0123456789ABCDEF" {
		t.Fatalf("decrypted key bytes = %q", got)
	}
}

func TestRSADecryptBlockRejectsBadSentinel(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	plaintext := make([]byte, blockSize)
	plaintext[0] = 1 // wrong sentinel

	ciphertext := rsaEncryptRaw(priv, plaintext)

	in := netmsg.NewInbound()
	copy(in.Buffer()[netmsg.InitialPosition:], ciphertext)
	in.SetLength(uint16(blockSize) + netmsg.InitialPosition)

	if DecryptBlock(priv, in) {
		t.Fatalf("DecryptBlock() with bad sentinel should fail")
	}
}
