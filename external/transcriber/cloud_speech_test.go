package transcriber

import (
	"errors"
	"io"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsReconnectableStreamError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "eof", err: io.EOF, want: true},
		{name: "max duration", err: status.Error(codes.Aborted, "Exceeded maximum allowed stream duration: max duration of 5 minutes"), want: true},
		{name: "idle timeout", err: status.Error(codes.Aborted, "Stream timed out after receiving no more client requests"), want: true},
		{name: "other abort", err: status.Error(codes.Aborted, "something else"), want: false},
		{name: "permission", err: status.Error(codes.PermissionDenied, "denied"), want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		if got := isReconnectableStreamError(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestConfigRequest(t *testing.T) {
	tr := NewCloudSpeechTranscriber(CloudSpeechConfig{
		ProjectID: "project-1",
		Language:  "en-US",
		Location:  " us ",
		Model:     "chirp_3",
	}).(*CloudSpeechTranscriber)

	req := tr.configRequest("en-GB")
	if req.GetRecognizer() != "projects/project-1/locations/us/recognizers/_" {
		t.Fatalf("unexpected recognizer: %q", req.GetRecognizer())
	}
	cfg := req.GetStreamingConfig().GetConfig()
	if cfg.GetModel() != "chirp_3" || cfg.GetLanguageCodes()[0] != "en-GB" {
		t.Fatalf("unexpected recognition config: %+v", cfg)
	}
	dec := cfg.GetExplicitDecodingConfig()
	if dec.GetEncoding() != speechpb.ExplicitDecodingConfig_LINEAR16 || dec.GetSampleRateHertz() != 48000 || dec.GetAudioChannelCount() != 2 {
		t.Fatalf("unexpected decoding config: %+v", dec)
	}
}
