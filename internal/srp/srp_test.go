package srp

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/acpgo/acp/internal/acperr"
	"github.com/acpgo/acp/internal/cflplist"
)

// serverDouble is a minimal SRP-6a server used only to exercise Client
// against real math, grounded on the teacher's habit of testing wire
// codecs end to end rather than mocking the crypto layer away.
type serverDouble struct {
	password string
	salt     []byte
	b        *big.Int
	B        *big.Int
	v        *big.Int
}

func newServerDouble(password string) *serverDouble {
	s := &serverDouble{password: password}
	s.salt = make([]byte, 16)
	rand.Read(s.salt)

	x := hashToBig(s.salt, sha1Sum([]byte(Identity+":"+password)))
	s.v = new(big.Int).Exp(G, x, N)

	priv := make([]byte, 32)
	rand.Read(priv)
	s.b = new(big.Int).SetBytes(priv)

	k := hashToBig(padToN(N), padToN(G))
	gb := new(big.Int).Exp(G, s.b, N)
	kv := new(big.Int).Mul(k, s.v)
	s.B = new(big.Int).Add(gb, kv)
	s.B.Mod(s.B, N)
	return s
}

func (s *serverDouble) challenge() cflplist.Value {
	return cflplist.DictOf(map[string]cflplist.Value{
		"salt":      cflplist.Data(s.salt),
		"generator": cflplist.Int(generator),
		"publicKey": cflplist.Data(s.B.Bytes()),
		"modulus":   cflplist.Data(N.Bytes()),
	}, []string{"salt", "generator", "publicKey", "modulus"})
}

func (s *serverDouble) verify(proof cflplist.Value) (*big.Int, []byte, error) {
	aV, _ := proof.Get("publicKey")
	A := new(big.Int).SetBytes(aV.AsData())

	u := hashToBig(padToN(A), padToN(s.B))
	avu := new(big.Int).Exp(s.v, u, N)
	base := new(big.Int).Mul(A, avu)
	base.Mod(base, N)
	S := new(big.Int).Exp(base, s.b, N)
	K := sha1Sum(S.Bytes())
	return A, K, nil
}

func TestSRPHandshakeSuccess(t *testing.T) {
	const password = "correct-password"
	client := NewClient(password)
	server := newServerDouble(password)

	if _, err := client.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := client.HandleChallenge(server.challenge()); err != nil {
		t.Fatalf("HandleChallenge: %v", err)
	}
	proof, err := client.Prove()
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	A, K, err := server.verify(proof)
	if err != nil {
		t.Fatalf("server verify: %v", err)
	}
	_ = A

	m1V, _ := proof.Get("response")
	m1 := m1V.AsData()
	m2 := computeM2(client.A, m1, K)

	serverIV := make([]byte, 16)
	rand.Read(serverIV)
	s4 := cflplist.DictOf(map[string]cflplist.Value{
		"response": cflplist.Data(m2),
		"iv":       cflplist.Data(serverIV),
	}, []string{"response", "iv"})

	ctx, err := client.Verify(s4)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ctx == nil {
		t.Fatalf("expected non-nil encryption context")
	}
}

func TestSRPRejectsZeroM2(t *testing.T) {
	client := NewClient("whatever")
	server := newServerDouble("whatever")

	client.Start()
	if err := client.HandleChallenge(server.challenge()); err != nil {
		t.Fatalf("HandleChallenge: %v", err)
	}
	if _, err := client.Prove(); err != nil {
		t.Fatalf("Prove: %v", err)
	}

	badM2 := make([]byte, 20)
	s4 := cflplist.DictOf(map[string]cflplist.Value{
		"response": cflplist.Data(badM2),
		"iv":       cflplist.Data(make([]byte, 16)),
	}, []string{"response", "iv"})

	_, err := client.Verify(s4)
	if err == nil {
		t.Fatalf("expected AuthError for zero M2")
	}
	var ae *acperr.Auth
	if authErr, ok := err.(*acperr.Auth); ok {
		ae = authErr
	}
	if ae == nil || ae.Reason != "M2" {
		t.Fatalf("expected M2 auth error, got %v", err)
	}
}

func TestHandleChallengeRejectsWrongModulus(t *testing.T) {
	client := NewClient("x")
	client.Start()
	bad := cflplist.DictOf(map[string]cflplist.Value{
		"salt":      cflplist.Data(make([]byte, 16)),
		"generator": cflplist.Int(generator),
		"publicKey": cflplist.Data([]byte{1, 2, 3}),
		"modulus":   cflplist.Data([]byte{0x01, 0x02}),
	}, []string{"salt", "generator", "publicKey", "modulus"})
	if err := client.HandleChallenge(bad); err == nil {
		t.Fatalf("expected auth error for wrong modulus")
	}
}
