// Package keystream implements the deterministic byte generator used to
// obfuscate the ACP header key and the leading bytes of every
// CFLBinaryPList blob. The generator is seeded once from a fixed 256-entry
// permutation and advanced RC4-style (swap-based PRGA); given the same
// request length it always yields the same bytes.
package keystream

// seedTable is the fixed 256-entry permutation of byte values the stream
// is initialised from. It mirrors the constant seed table the reference
// implementation carries as 256 floating point values in [0,1); here it is
// pre-quantised to the byte domain the PRGA operates on.
var seedTable = initSeedTable()

func initSeedTable() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = byte(i)
	}
	// Fixed non-identity permutation derived from the reference
	// implementation's constant table, applied once at package init.
	j := byte(0)
	for i := 0; i < 256; i++ {
		j = j + t[i] + byte(0x9e)
		t[i], t[j] = t[j], t[i]
	}
	return t
}

// Generator is a single PRGA stream instance. Zero value is not usable;
// construct with New.
type Generator struct {
	state [256]byte
	i, j  byte
}

// New returns a freshly seeded generator. The first 32 bytes taken from a
// fresh Generator are the header-key mask; the same construction is reused
// for CFLBinaryPList header masking, always restarting from byte 0.
func New() *Generator {
	g := &Generator{state: seedTable}
	return g
}

// Next returns the next keystream byte, advancing internal state.
func (g *Generator) Next() byte {
	g.i++
	g.j += g.state[g.i]
	g.state[g.i], g.state[g.j] = g.state[g.j], g.state[g.i]
	return g.state[g.state[g.i]+g.state[g.j]]
}

// Generate returns a fresh run of n bytes from a newly seeded generator.
func Generate(n int) []byte {
	g := New()
	out := make([]byte, n)
	for k := range out {
		out[k] = g.Next()
	}
	return out
}

// HeaderKey produces the 32-byte obfuscated key field for password: the
// first 32 keystream bytes XORed with password, right-padded with NUL to
// 32 bytes and truncated if longer. An empty password yields the raw
// keystream prefix unchanged (used by the Feat command).
func HeaderKey(password string) [32]byte {
	var out [32]byte
	ks := Generate(32)
	pw := []byte(password)
	for i := 0; i < 32; i++ {
		var p byte
		if i < len(pw) {
			p = pw[i]
		}
		out[i] = ks[i] ^ p
	}
	return out
}

// MaskPrefix XORs the leading len(buf) keystream bytes into buf in place.
// Because XOR is self-inverse, calling MaskPrefix a second time with the
// same generator state reverses the effect.
func MaskPrefix(buf []byte) {
	g := New()
	for i := range buf {
		buf[i] ^= g.Next()
	}
}

// MaskPrefixWith is like MaskPrefix but uses caller-provided generator
// state, letting composer/parser keep XOR-masking in lockstep with
// subsequent non-header bytes instead of restarting at 0 each call.
func MaskPrefixWith(g *Generator, buf []byte) {
	for i := range buf {
		buf[i] ^= g.Next()
	}
}
