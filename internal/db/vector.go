package db

import (
	"encoding/binary"
	"math"
)

// EncodeVector packs v as little-endian FLOAT32, the layout HASH vector fields and KNN
// query parameters expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector unpacks a FLOAT32 blob. Trailing partial values are dropped.
func DecodeVector(s string) []float32 {
	out := make([]float32, len(s)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return out
}
