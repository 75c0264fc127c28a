package storage

import (
	"encoding/binary"
	"math"
)

// encodeVector packs a float32 vector into its raw little-endian byte
// sequence, the format memory_vectors.vector stores (spec.md §4.1).
func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DecodeVector unpacks a raw little-endian byte sequence back into a float32
// vector. Exported for the retrieval engine (internal/retrieval), which reads
// memory_vectors.vector directly.
func DecodeVector(raw []byte) []float32 {
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
