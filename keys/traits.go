// Package keys provides the fixed-width, order-preserving key encodings
// the B+tree stores on-page, plus the comparator each encoding pairs
// with. Rather than runtime polymorphism over key type, callers pick a
// concrete Traits[K] value at tree-construction time and the compiler
// specializes every node operation for it.
package keys

import "encoding/binary"

// Traits bundles everything a B+tree needs to treat K as an ordered,
// fixed-width, on-page key: its encoded size, a three-way comparator,
// and encode/decode functions operating on exactly Size bytes.
type Traits[K any] struct {
	// Size is the number of bytes K occupies once encoded. Every slot
	// in a node's key array reserves exactly this many bytes.
	Size int
	// Compare returns <0, 0, >0 as a<b, a==b, a>b.
	Compare func(a, b K) int
	// Encode writes the fixed-width encoding of k into dst[:Size].
	Encode func(dst []byte, k K)
	// Decode reads a K back out of src[:Size].
	Decode func(src []byte) K
}

// Int64Traits is the 8-byte fixed-width instantiation for int64 keys.
// Integers are encoded big-endian with the sign bit flipped so unsigned
// byte-lexicographic comparison of the encoded bytes agrees with signed
// numeric comparison. Node search itself decodes each key and uses
// Compare rather than comparing raw page bytes.
var Int64Traits = Traits[int64]{
	Size: 8,
	Compare: func(a, b int64) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	},
	Encode: func(dst []byte, k int64) {
		binary.BigEndian.PutUint64(dst, uint64(k)^signBit64)
	},
	Decode: func(src []byte) int64 {
		return int64(binary.BigEndian.Uint64(src) ^ signBit64)
	},
}

const signBit64 = uint64(1) << 63

// Str16Traits is the 16-byte fixed-width instantiation for short string
// keys. Strings longer than 16 bytes are truncated on encode; shorter
// strings are zero-padded, so byte comparison of the encoded form
// agrees with lexicographic comparison of the original string up to 16
// bytes.
var Str16Traits = Traits[string]{
	Size: 16,
	Compare: func(a, b string) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	},
	Encode: func(dst []byte, k string) {
		clear(dst[:16])
		copy(dst[:16], k)
	},
	Decode: func(src []byte) string {
		end := 0
		for end < 16 && src[end] != 0 {
			end++
		}
		return string(src[:end])
	},
}
