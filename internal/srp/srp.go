// Package srp implements the SRP-6a handshake specialised to this ACP
// deployment: a fixed 1536-bit group, SHA-1, and the fixed username
// "admin". The four-message state machine (spec.md §4.5) is modelled as
// four methods on Client, each taking/returning a cflplist.Value dict —
// the same shape the teacher's handshake.Hello/VerifyHello pair uses for
// its own (ed25519-based) identity exchange, adapted here to big-integer
// math instead of signatures.
package srp

import (
	"crypto/rand"
	"crypto/sha1"
	"math/big"

	"github.com/acpgo/acp/internal/acperr"
	"github.com/acpgo/acp/internal/cflplist"
)

// Identity is the fixed SRP username this deployment authenticates as.
const Identity = "admin"

// Client drives one SRP-6a exchange for a single authentication attempt.
// Not safe for concurrent use; the façade serialises authentication with
// a mutex-guarded shared in-flight future (spec.md §4.7).
type Client struct {
	password string

	a *big.Int // client private key (24 random bytes, per spec.md §4.5)
	A *big.Int

	salt []byte
	B    *big.Int

	clientIV [16]byte
	serverIV [16]byte

	k *big.Int
	K []byte // SHA-1(S), the raw shared secret hash
}

// NewClient constructs a handshake driver for password.
func NewClient(password string) *Client {
	return &Client{password: password}
}

// Start builds the S1 message: {state:1, username:"admin"}.
func (c *Client) Start() (cflplist.Value, error) {
	return cflplist.DictOf(map[string]cflplist.Value{
		"state":    cflplist.Int(1),
		"username": cflplist.String(Identity),
	}, []string{"state", "username"}), nil
}

// HandleChallenge consumes S2: {salt, generator, publicKey:B, modulus:N}.
// It validates the advertised modulus against the expected constant and
// stores salt/B for Prove.
func (c *Client) HandleChallenge(resp cflplist.Value) error {
	saltV, ok := resp.Get("salt")
	if !ok || saltV.Kind() != cflplist.KindData {
		return &acperr.Auth{Stage: "S2", Reason: "missing or malformed salt"}
	}
	modV, ok := resp.Get("modulus")
	if !ok || modV.Kind() != cflplist.KindData {
		return &acperr.Auth{Stage: "S2", Reason: "missing or malformed modulus"}
	}
	pubV, ok := resp.Get("publicKey")
	if !ok || pubV.Kind() != cflplist.KindData {
		return &acperr.Auth{Stage: "S2", Reason: "missing or malformed publicKey"}
	}

	gotN := new(big.Int).SetBytes(modV.AsData())
	if gotN.Cmp(N) != 0 {
		return &acperr.Auth{Stage: "S2", Reason: "unexpected modulus"}
	}

	c.salt = saltV.AsData()
	c.B = new(big.Int).SetBytes(pubV.AsData())
	if c.B.Sign() == 0 || new(big.Int).Mod(c.B, N).Sign() == 0 {
		return &acperr.Auth{Stage: "S2", Reason: "invalid publicKey B"}
	}
	return nil
}

// Prove computes A and M1 and builds the S3 message: {iv, publicKey:A,
// state:3, response:M1}.
func (c *Client) Prove() (cflplist.Value, error) {
	priv := make([]byte, 24)
	if _, err := rand.Read(priv); err != nil {
		return cflplist.Value{}, &acperr.Auth{Stage: "S3", Reason: "rng failure"}
	}
	c.a = new(big.Int).SetBytes(priv)
	c.A = new(big.Int).Exp(G, c.a, N)

	if _, err := rand.Read(c.clientIV[:]); err != nil {
		return cflplist.Value{}, &acperr.Auth{Stage: "S3", Reason: "rng failure"}
	}

	c.k = hashToBig(padToN(N), padToN(G))
	x := c.computeX()
	u := hashToBig(padToN(c.A), padToN(c.B))

	// S = (B - k*g^x)^(a + u*x) mod N
	gx := new(big.Int).Exp(G, x, N)
	kgx := new(big.Int).Mul(c.k, gx)
	base := new(big.Int).Sub(c.B, kgx)
	base.Mod(base, N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)
	S := new(big.Int).Exp(base, exp, N)

	c.K = sha1Sum(S.Bytes())
	m1 := computeM1(N, G, Identity, c.salt, c.A, c.B, c.K)

	return cflplist.DictOf(map[string]cflplist.Value{
		"iv":        cflplist.Data(c.clientIV[:]),
		"publicKey": cflplist.Data(c.A.Bytes()),
		"state":     cflplist.Int(3),
		"response":  cflplist.Data(m1),
	}, []string{"iv", "publicKey", "state", "response"}), nil
}

func (c *Client) computeX() *big.Int {
	inner := sha1Sum([]byte(Identity + ":" + c.password))
	h := sha1.New()
	h.Write(c.salt)
	h.Write(inner)
	return new(big.Int).SetBytes(h.Sum(nil))
}

// Verify consumes S4: {response:M2, iv:server_iv}, checks M2 against the
// locally computed expectation, and on success returns the encryption
// context for the caller to install. On mismatch no context is returned
// and the caller receives an AuthError (spec.md §4.5).
func (c *Client) Verify(resp cflplist.Value) (*EncryptionContext, error) {
	m2V, ok := resp.Get("response")
	if !ok || m2V.Kind() != cflplist.KindData {
		return nil, &acperr.Auth{Stage: "S4", Reason: "missing or malformed response"}
	}
	ivV, ok := resp.Get("iv")
	if !ok || ivV.Kind() != cflplist.KindData || len(ivV.AsData()) != 16 {
		return nil, &acperr.Auth{Stage: "S4", Reason: "missing or malformed server iv"}
	}
	copy(c.serverIV[:], ivV.AsData())

	m1 := computeM1(N, G, Identity, c.salt, c.A, c.B, c.K)
	expected := computeM2(c.A, m1, c.K)
	if !bytesEqual(expected, m2V.AsData()) {
		return nil, &acperr.Auth{Stage: "S4", Reason: "M2"}
	}
	return newEncryptionContext(c.K, c.clientIV, c.serverIV)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sha1Sum(b []byte) []byte {
	h := sha1.Sum(b)
	return h[:]
}

func hashToBig(parts ...[]byte) *big.Int {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// padToN left-pads v's big-endian bytes to the byte length of N, the
// convention RFC 5054's H(N) XOR H(g) and M1/M2 formulas rely on.
func padToN(v *big.Int) []byte {
	nLen := (N.BitLen() + 7) / 8
	b := v.Bytes()
	if len(b) >= nLen {
		return b
	}
	out := make([]byte, nLen)
	copy(out[nLen-len(b):], b)
	return out
}

// computeM1 follows RFC 2945/5054: M1 = H(H(N) XOR H(g), H(I), s, A, B, K).
func computeM1(n, g *big.Int, identity string, salt []byte, A, B *big.Int, K []byte) []byte {
	hn := sha1Sum(padToN(n))
	hg := sha1Sum(padToN(g))
	xored := make([]byte, len(hn))
	for i := range hn {
		xored[i] = hn[i] ^ hg[i]
	}
	hi := sha1Sum([]byte(identity))
	h := sha1.New()
	h.Write(xored)
	h.Write(hi)
	h.Write(salt)
	h.Write(padToN(A))
	h.Write(padToN(B))
	h.Write(K)
	return h.Sum(nil)
}

// computeM2 follows RFC 2945/5054: M2 = H(A, M1, K).
func computeM2(A *big.Int, m1, K []byte) []byte {
	h := sha1.New()
	h.Write(padToN(A))
	h.Write(m1)
	h.Write(K)
	return h.Sum(nil)
}
