package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials"
	"github.com/foxseedlab/gymvoice/internal/model"
	"google.golang.org/genai"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

type GeminiConfig struct {
	APIKey          string
	ProjectID       string
	CredentialsJSON string
	Location        string
	ParseModel      string
	AnalysisModel   string
	VisionModel     string
	ChatModel       string
	Timeout         time.Duration
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatFactory func(ctx context.Context, model string, config *genai.GenerateContentConfig) (chatSession, error)

// Gemini serves every model call shape through the Gemini API or Vertex AI.
type Gemini struct {
	cfg     GeminiConfig
	models  contentGenerator
	newChat chatFactory
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{}
	if cfg.APIKey != "" {
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	} else {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			CredentialsJSON: []byte(cfg.CredentialsJSON),
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials: %w", err)
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.ProjectID
		cc.Location = cfg.Location
		cc.Credentials = creds
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	slog.Info("gemini client initialized", "vertex_ai", cc.Backend == genai.BackendVertexAI, "parse_model", cfg.ParseModel, "analysis_model", cfg.AnalysisModel)

	return &Gemini{
		cfg:    cfg,
		models: client.Models,
		newChat: func(ctx context.Context, model string, config *genai.GenerateContentConfig) (chatSession, error) {
			return client.Chats.Create(ctx, model, config, nil)
		},
	}, nil
}

func (g *Gemini) GenerateStructured(ctx context.Context, req model.StructuredRequest) ([]byte, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(req.Schema),
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	modelName := g.modelFor(req.Task)
	resp, err := g.models.GenerateContent(ctx, modelName, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("generate content with %s: %w", modelName, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return []byte(text), nil
}

func (g *Gemini) DescribeImage(ctx context.Context, req model.ImageRequest) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image, req.MimeType),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, g.cfg.VisionModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("describe image with %s: %w", g.cfg.VisionModel, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *Gemini) StartChat(ctx context.Context, req model.ChatRequest) (model.Chat, error) {
	config := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	session, err := g.newChat(ctx, g.cfg.ChatModel, config)
	if err != nil {
		return nil, fmt.Errorf("create chat with %s: %w", g.cfg.ChatModel, err)
	}
	return &geminiChat{session: session, timeout: g.cfg.Timeout}, nil
}

func (g *Gemini) modelFor(task model.Task) string {
	if task == model.TaskAnalysis {
		return g.cfg.AnalysisModel
	}
	return g.cfg.ParseModel
}

func (g *Gemini) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.cfg.Timeout)
}

type geminiChat struct {
	session chatSession
	timeout time.Duration
}

func (c *geminiChat) Send(ctx context.Context, message string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.session.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toGenaiSchema(s *model.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toGenaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func toGenaiType(t model.SchemaType) genai.Type {
	switch t {
	case model.TypeObject:
		return genai.TypeObject
	case model.TypeInteger:
		return genai.TypeInteger
	case model.TypeNumber:
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}
