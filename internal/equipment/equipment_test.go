package equipment

import (
	"context"
	"errors"
	"testing"

	"github.com/foxseedlab/gymvoice/internal/model"
)

type fakeModel struct {
	text     string
	err      error
	requests []model.ImageRequest
}

func (f *fakeModel) GenerateStructured(_ context.Context, _ model.StructuredRequest) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeModel) DescribeImage(_ context.Context, req model.ImageRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.text, f.err
}

func (f *fakeModel) StartChat(_ context.Context, _ model.ChatRequest) (model.Chat, error) {
	return nil, errors.New("not implemented")
}

func TestIdentify_TrimsLabel(t *testing.T) {
	m := &fakeModel{text: "  Lat Pulldown Machine\n"}
	label, err := NewIdentifier(m).Identify(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "Lat Pulldown Machine" {
		t.Fatalf("unexpected label: %q", label)
	}
	if len(m.requests) != 1 || m.requests[0].MimeType != "image/jpeg" || m.requests[0].Instruction != instruction {
		t.Fatalf("unexpected requests: %+v", m.requests)
	}
}

func TestIdentify_Failures(t *testing.T) {
	cases := map[string]*fakeModel{
		"model error": {err: errors.New("deadline exceeded")},
		"empty text":  {text: "   "},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewIdentifier(m).Identify(context.Background(), []byte{1}, "image/png"); !errors.Is(err, ErrIdentificationFailed) {
				t.Fatalf("expected ErrIdentificationFailed, got %v", err)
			}
		})
	}
}

func TestIdentify_EmptyImageSkipsModel(t *testing.T) {
	m := &fakeModel{text: "Bench"}
	if _, err := NewIdentifier(m).Identify(context.Background(), nil, "image/png"); !errors.Is(err, ErrIdentificationFailed) {
		t.Fatalf("expected ErrIdentificationFailed, got %v", err)
	}
	if len(m.requests) != 0 {
		t.Fatalf("expected no model call, got %d", len(m.requests))
	}
}
