// Package adler32chk adapts the standard library's RFC 1950 Adler-32
// implementation to the two call shapes the message and property codecs
// need. Adler-32 is a fixed, parameter-free algorithm with no third-party
// ecosystem alternative worth preferring over hash/adler32.
package adler32chk

import "hash/adler32"

// Checksum returns the Adler-32 checksum of b.
func Checksum(b []byte) uint32 {
	return adler32.Checksum(b)
}

// VerifyChecksum reports whether b's Adler-32 checksum equals want.
func VerifyChecksum(b []byte, want uint32) bool {
	return adler32.Checksum(b) == want
}
