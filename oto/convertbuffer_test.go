package oto_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/livetechno/livetechno/oto"
)

func TestFloatBufferToFloat32LE(t *testing.T) {
	in := []float32{0, 1, -0.5, 0.25}
	out := make([]byte, 4*len(in))
	if n := oto.FloatBufferToFloat32LE(in, out); n != 16 {
		t.Fatalf("got %d bytes, expected 16", n)
	}
	for i, v := range in {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(out[4*i:])); got != v {
			t.Fatalf("sample %d: got %v, expected %v", i, got, v)
		}
	}
}
