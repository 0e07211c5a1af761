package srp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"

	"github.com/acpgo/acp/internal/acperr"
)

// salt0Hex and salt1Hex are the fixed PBKDF2 salts for the client→server
// and server→client AES-128-CTR keys, per spec.md §3.
const (
	salt0Hex = "F072FA3F66B410A135FAE8E6D1D43D5F"
	salt1Hex = "BD0682C9FE79325BC73655F4174B996C"
)

var (
	salt0 = mustHexBytes(salt0Hex)
	salt1 = mustHexBytes(salt1Hex)
)

func mustHexBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// EncryptionContext holds the two independent AES-128-CTR streams this
// session uses once authenticated: one for bytes the client writes, one
// for bytes the client reads. CTR counters advance monotonically for the
// lifetime of the session and are never reset (spec.md §4.6).
type EncryptionContext struct {
	clientStream cipher.Stream
	serverStream cipher.Stream
}

func newEncryptionContext(K []byte, clientIV, serverIV [16]byte) (*EncryptionContext, error) {
	clientKey := pbkdf2.Key(K, salt0, 5, 16, sha1.New)
	serverKey := pbkdf2.Key(K, salt1, 7, 16, sha1.New)

	clientBlock, err := aes.NewCipher(clientKey)
	if err != nil {
		return nil, &acperr.Auth{Stage: "S5", Reason: "aes key setup: " + err.Error()}
	}
	serverBlock, err := aes.NewCipher(serverKey)
	if err != nil {
		return nil, &acperr.Auth{Stage: "S5", Reason: "aes key setup: " + err.Error()}
	}

	return &EncryptionContext{
		clientStream: cipher.NewCTR(clientBlock, clientIV[:]),
		serverStream: cipher.NewCTR(serverBlock, serverIV[:]),
	}, nil
}

// EncryptOutbound XORs src with the client→server keystream into dst.
// dst and src may be the same slice.
func (e *EncryptionContext) EncryptOutbound(dst, src []byte) {
	e.clientStream.XORKeyStream(dst, src)
}

// DecryptInbound XORs src with the server→client keystream into dst.
// dst and src may be the same slice.
func (e *EncryptionContext) DecryptInbound(dst, src []byte) {
	e.serverStream.XORKeyStream(dst, src)
}
