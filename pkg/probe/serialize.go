package probe

import (
	"encoding/binary"
	"math"
)

// SerializeF32 packs values as little-endian 32-bit floats.
func SerializeF32(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}
