package tracker

import (
	"math"

	"github.com/livetechno/livetechno"
	"github.com/viterin/vek/vek32"
)

type (
	// Detector meters the rendered audio in its own goroutine. The player
	// sends it copies of the rendered blocks; every 100 ms of audio, the
	// detector publishes a DetectorResult to the model.
	Detector struct {
		broker    *Broker
		chunkSize int
		history   livetechno.AudioBuffer
		peaks     RingBuffer[float32] // peak amplitude of the last chunks
		powers    RingBuffer[float32] // mean square of the last chunks
		maxPeak   float32
		tmp       []float32
	}

	Decibel float32

	DetectorResult struct {
		Peak    Decibel // highest absolute sample over the window
		MaxPeak Decibel // highest absolute sample since the last reset
		RMS     Decibel // root mean square level over the window
	}

	RingBuffer[T any] struct {
		Buffer []T
		Cursor int
	}
)

const (
	// detectorWindow is the number of 100 ms chunks the momentary values are
	// computed over
	detectorWindow = 4
	// MinDecibel is reported for silence
	MinDecibel Decibel = -100
)

func NewDetector(b *Broker, sampleRate int) *Detector {
	return &Detector{
		broker:    b,
		chunkSize: max(sampleRate/10, 1),
		peaks:     RingBuffer[float32]{Buffer: make([]float32, detectorWindow)},
		powers:    RingBuffer[float32]{Buffer: make([]float32, detectorWindow)},
	}
}

// Run processes messages until CloseDetector is signaled, then closes
// FinishedDetector.
func (d *Detector) Run() {
	for {
		select {
		case <-d.broker.CloseDetector:
			close(d.broker.FinishedDetector)
			return
		case msg := <-d.broker.ToDetector:
			d.handle(msg)
		}
	}
}

func (d *Detector) handle(msg MsgToDetector) {
	if msg.Reset {
		d.reset()
	}
	switch data := msg.Data.(type) {
	case *livetechno.AudioBuffer:
		d.history = append(d.history, *data...)
		d.broker.PutAudioBuffer(data)
		for len(d.history) >= d.chunkSize {
			TrySend(d.broker.ToModel, MsgToModel{
				HasDetectorResult: true,
				DetectorResult:    d.update(d.history[:d.chunkSize]),
			})
			d.history = append(d.history[:0], d.history[d.chunkSize:]...)
		}
	case func():
		data()
	}
}

func (d *Detector) update(chunk livetechno.AudioBuffer) DetectorResult {
	setSliceLength(&d.tmp, len(chunk))
	peak := vek32.Max(vek32.Abs_Into(d.tmp, chunk))
	d.peaks.WriteWrapSingle(peak)
	d.powers.WriteWrapSingle(vek32.Dot(chunk, chunk) / float32(len(chunk)))
	d.maxPeak = max(d.maxPeak, peak)
	return DetectorResult{
		Peak:    amplitude2decibel(vek32.Max(d.peaks.Buffer)),
		MaxPeak: amplitude2decibel(d.maxPeak),
		RMS:     power2decibel(vek32.Mean(d.powers.Buffer)),
	}
}

func (d *Detector) reset() {
	d.history = d.history[:0]
	vek32.Zeros_Into(d.peaks.Buffer, len(d.peaks.Buffer))
	vek32.Zeros_Into(d.powers.Buffer, len(d.powers.Buffer))
	d.peaks.Cursor, d.powers.Cursor = 0, 0
	d.maxPeak = 0
}

func amplitude2decibel(amplitude float32) Decibel {
	return power2decibel(amplitude * amplitude)
}

func power2decibel(power float32) Decibel {
	if power <= 0 {
		return MinDecibel
	}
	return max(Decibel(10*math.Log10(float64(power))), MinDecibel)
}

func (r *RingBuffer[T]) WriteWrapSingle(value T) {
	r.Cursor = (r.Cursor + 1) % len(r.Buffer)
	r.Buffer[r.Cursor] = value
}

func setSliceLength[T any](slice *[]T, length int) {
	if len(*slice) < length {
		*slice = append(*slice, make([]T, length-len(*slice))...)
	}
	*slice = (*slice)[:length]
}
