package audio

import "errors"

var ErrDecoderUnavailable = errors.New("opus decoding is not available in this build")

// Decoder turns one speaker's opus packets into 48kHz stereo little-endian PCM.
type Decoder interface {
	Decode(packet []byte) ([]byte, error)
	Close()
}

type DecoderFactory func() (Decoder, error)
