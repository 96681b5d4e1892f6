package model

import "context"

type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
)

// Schema is the subset of JSON schema the services need to constrain structured output.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Required    []string
	Enum        []string
}

type StructuredRequest struct {
	Task              Task
	SystemInstruction string
	Prompt            string
	Schema            *Schema
}

type ImageRequest struct {
	Image       []byte
	MimeType    string
	Instruction string
}

type ChatRequest struct {
	SystemInstruction string
}

// Task selects which configured model serves a structured request.
type Task string

const (
	TaskParse    Task = "parse"
	TaskAnalysis Task = "analysis"
)

type Chat interface {
	Send(ctx context.Context, message string) (string, error)
}

type Capability interface {
	GenerateStructured(ctx context.Context, req StructuredRequest) ([]byte, error)
	DescribeImage(ctx context.Context, req ImageRequest) (string, error)
	StartChat(ctx context.Context, req ChatRequest) (Chat, error)
}
