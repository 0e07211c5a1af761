package keystream

import "testing"

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(64)
	b := Generate(64)
	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("expected 64 bytes, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("byte %d differs between runs: %x vs %x", i, a[i], b[i])
		}
	}
}

func TestHeaderKeyEmptyPasswordIsRawPrefix(t *testing.T) {
	want := Generate(32)
	got := HeaderKey("")
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("byte %d: want %x got %x", i, want[i], got[i])
		}
	}
}

func TestHeaderKeyXorsPassword(t *testing.T) {
	ks := Generate(32)
	got := HeaderKey("admin")
	pw := []byte("admin")
	for i := range got {
		var p byte
		if i < len(pw) {
			p = pw[i]
		}
		if got[i] != ks[i]^p {
			t.Fatalf("byte %d: want %x got %x", i, ks[i]^p, got[i])
		}
	}
}

func TestMaskPrefixIsSelfInverse(t *testing.T) {
	orig := []byte("hello, base station")
	buf := append([]byte(nil), orig...)
	MaskPrefix(buf)
	if string(buf) == string(orig) {
		t.Fatalf("expected MaskPrefix to change the buffer")
	}
	MaskPrefix(buf)
	if string(buf) != string(orig) {
		t.Fatalf("expected double MaskPrefix to restore original, got %q", buf)
	}
}
