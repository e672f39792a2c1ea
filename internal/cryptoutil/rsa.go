// Package cryptoutil implements the handshake's two cryptographic
// primitives: raw (unpadded) RSA decryption of the 128-byte key exchange
// block, and the XTEA block cipher used for everything after it.
package cryptoutil

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"math/big"

	"github.com/bravecorp/pwo-login-server/internal/netmsg"
)

// LoadRSAPrivateKey parses a PKCS#1 PEM-encoded private key, the same
// format the original server's key file uses.
func LoadRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("cryptoutil: no PEM block found in RSA key")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// blockSize is the fixed width of the raw RSA block the handshake carries:
// a 1024-bit modulus, unpadded.
const blockSize = 128

// DecryptBlock performs the handshake's raw RSA decryption in place over
// the next 128 bytes of msg, starting at its current read cursor, and
// reports whether the decrypted block begins with the required zero
// sentinel byte (the original format's only padding check).
//
// crypto/rsa deliberately refuses to expose unpadded decryption since
// textbook RSA without padding is unsafe for general use; this handshake's
// wire format requires exactly that, so the modular exponentiation is
// done directly against the key's N and D. See DESIGN.md for why no
// library covers this.
func DecryptBlock(priv *rsa.PrivateKey, msg *netmsg.Inbound) bool {
	if int(msg.Length())-int(msg.Position()) < blockSize {
		return false
	}

	region := msg.CipherRegion(blockSize)

	c := new(big.Int).SetBytes(region)
	m := new(big.Int).Exp(c, priv.D, priv.N)
	m.FillBytes(region)

	return msg.GetByte() == 0
}
