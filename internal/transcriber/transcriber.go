package transcriber

import "context"

// StreamWriter accepts 48kHz stereo LINEAR16 audio for one recognition stream.
type StreamWriter interface {
	Write(pcm []byte) error
	Close() error
}

type ResultReceiver interface {
	OnResult(text string, isFinal bool)
	OnError(err error)
}

type Transcriber interface {
	StartStreaming(ctx context.Context, streamID, language string, receiver ResultReceiver) (StreamWriter, error)
}
