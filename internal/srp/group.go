package srp

import "math/big"

// group1536Hex is the 1536-bit SRP modulus used by this deployment: the
// RFC 5054 1536-bit group, which reuses the RFC 3526 Group 5 safe prime
// (N such that (N-1)/2 is also prime) with generator 2. HandleChallenge
// validates the server's advertised modulus against this constant
// rather than trusting whatever value is on the wire.
const group1536Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
	"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
	"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
	"9ED529077096966D670C354E4ABC9804F1746C08CA237327FFFFFFFFFFFFFFFF"

const generator = 2

var (
	// N is the group modulus as a big.Int, parsed once at init.
	N = mustHex(group1536Hex)
	// G is the fixed generator.
	G = big.NewInt(generator)
)

func mustHex(s string) *big.Int {
	n := new(big.Int)
	n.SetString(s, 16)
	return n
}
