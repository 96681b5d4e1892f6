//go:build opus

package audio

import (
	"encoding/binary"
	"sync"

	"github.com/foxseedlab/gymvoice/internal/audio"
	"github.com/hraban/opus"
)

const (
	sampleRate      = 48000
	channels        = 2
	frameSizeMs     = 20
	samplesPerFrame = sampleRate * frameSizeMs * channels / 1000
)

type OpusDecoder struct {
	mu     sync.Mutex
	dec    *opus.Decoder
	pcm    []int16
	closed bool
}

func NewOpusDecoder() (audio.Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &OpusDecoder{dec: dec, pcm: make([]int16, samplesPerFrame)}, nil
}

func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	if len(packet) == 0 {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil
	}
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return nil, err
	}
	return encodePCM(d.pcm, n*channels), nil
}

func (d *OpusDecoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.dec = nil
}

func encodePCM(samples []int16, total int) []byte {
	if total > len(samples) {
		total = len(samples)
	}
	out := make([]byte, total*2)
	for i := 0; i < total; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(samples[i]))
	}
	return out
}
