package model

import (
	"context"
	"errors"
	"testing"

	"github.com/foxseedlab/gymvoice/internal/model"
	"google.golang.org/genai"
)

type mockGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	text     string
	err      error
}

func (m *mockGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model = model
	m.contents = contents
	m.config = config
	if m.err != nil {
		return nil, m.err
	}
	return textResponse(m.text), nil
}

type mockChatSession struct {
	sent []string
}

func (m *mockChatSession) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.sent = append(m.sent, parts[0].Text)
	return textResponse("Keep your back straight."), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func newTestGemini(gen contentGenerator) *Gemini {
	return &Gemini{
		cfg: GeminiConfig{
			ParseModel:    "parse-model",
			AnalysisModel: "analysis-model",
			VisionModel:   "vision-model",
			ChatModel:     "chat-model",
		},
		models: gen,
	}
}

func TestGenerateStructured_RoutesByTask(t *testing.T) {
	gen := &mockGenerator{text: ` {"exercise_name":"Squat"} `}
	g := newTestGemini(gen)

	out, err := g.GenerateStructured(context.Background(), model.StructuredRequest{
		Task:              model.TaskParse,
		SystemInstruction: "parse it",
		Prompt:            "squat 5x5",
		Schema: &model.Schema{
			Type: model.TypeObject,
			Properties: map[string]*model.Schema{
				"exercise_name": {Type: model.TypeString},
				"sets":          {Type: model.TypeInteger},
				"weight":        {Type: model.TypeNumber},
				"unit":          {Type: model.TypeString, Enum: []string{"lbs", "kg"}},
			},
			Required: []string{"exercise_name"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateStructured returned error: %v", err)
	}
	if string(out) != `{"exercise_name":"Squat"}` {
		t.Fatalf("unexpected output: %s", out)
	}
	if gen.model != "parse-model" {
		t.Fatalf("expected parse model, got %q", gen.model)
	}
	if gen.config.ResponseMIMEType != "application/json" {
		t.Fatalf("unexpected mime type: %q", gen.config.ResponseMIMEType)
	}
	schema := gen.config.ResponseSchema
	if schema.Type != genai.TypeObject || schema.Properties["sets"].Type != genai.TypeInteger || schema.Properties["weight"].Type != genai.TypeNumber {
		t.Fatalf("unexpected schema conversion: %+v", schema)
	}
	if len(schema.Properties["unit"].Enum) != 2 || schema.Required[0] != "exercise_name" {
		t.Fatalf("enum or required list lost: %+v", schema)
	}
	if gen.config.SystemInstruction == nil || gen.config.SystemInstruction.Parts[0].Text != "parse it" {
		t.Fatalf("system instruction not set: %+v", gen.config.SystemInstruction)
	}

	if _, err := g.GenerateStructured(context.Background(), model.StructuredRequest{Task: model.TaskAnalysis, Prompt: "x"}); err != nil {
		t.Fatalf("GenerateStructured returned error: %v", err)
	}
	if gen.model != "analysis-model" {
		t.Fatalf("expected analysis model, got %q", gen.model)
	}
}

func TestGenerateStructured_EmptyAndFailedResponses(t *testing.T) {
	g := newTestGemini(&mockGenerator{text: "  "})
	if _, err := g.GenerateStructured(context.Background(), model.StructuredRequest{Prompt: "x"}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	g = newTestGemini(&mockGenerator{err: errors.New("quota")})
	if _, err := g.GenerateStructured(context.Background(), model.StructuredRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error from generator")
	}
}

func TestDescribeImage(t *testing.T) {
	gen := &mockGenerator{text: "Cable Crossover\n"}
	g := newTestGemini(gen)

	name, err := g.DescribeImage(context.Background(), model.ImageRequest{
		Image:       []byte{0xff, 0xd8},
		MimeType:    "image/jpeg",
		Instruction: "Identify this gym equipment.",
	})
	if err != nil {
		t.Fatalf("DescribeImage returned error: %v", err)
	}
	if name != "Cable Crossover" || gen.model != "vision-model" {
		t.Fatalf("unexpected result %q from %q", name, gen.model)
	}
	parts := gen.contents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/jpeg" || parts[1].Text != "Identify this gym equipment." {
		t.Fatalf("unexpected parts: %+v", parts)
	}
}

func TestStartChat(t *testing.T) {
	session := &mockChatSession{}
	var gotModel string
	var gotConfig *genai.GenerateContentConfig
	g := newTestGemini(&mockGenerator{})
	g.newChat = func(_ context.Context, model string, config *genai.GenerateContentConfig) (chatSession, error) {
		gotModel = model
		gotConfig = config
		return session, nil
	}

	c, err := g.StartChat(context.Background(), model.ChatRequest{SystemInstruction: "be a trainer"})
	if err != nil {
		t.Fatalf("StartChat returned error: %v", err)
	}
	reply, err := c.Send(context.Background(), "how do I squat?")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if reply != "Keep your back straight." || gotModel != "chat-model" {
		t.Fatalf("unexpected reply %q from %q", reply, gotModel)
	}
	if gotConfig.SystemInstruction.Parts[0].Text != "be a trainer" || session.sent[0] != "how do I squat?" {
		t.Fatalf("unexpected chat wiring: %+v %v", gotConfig.SystemInstruction, session.sent)
	}
}
