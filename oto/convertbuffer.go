package oto

import (
	"encoding/binary"
	"math"
)

// FloatBufferToFloat32LE writes the samples into out as little-endian float32
// and returns the number of bytes written. out must hold 4 bytes per sample.
func FloatBufferToFloat32LE(buff []float32, out []byte) int {
	for i, v := range buff {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return 4 * len(buff)
}
