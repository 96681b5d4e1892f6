package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/foxseedlab/gymvoice/internal/model"
)

const (
	systemInstruction = "You are an enthusiastic and expert gym trainer. You help users identify exercises, plan workouts, and give form advice. Keep your answers concise, motivating, and text-based (no markdown tables)."

	Greeting    = "Hello there! I'm LeilAI. Ready to keep your fitness timeless and on track? Ask me anything!"
	GlitchReply = "Oh dear, connection glitch! Let's try that again in a moment."
)

// Assistant keeps one multi-turn trainer chat per user.
type Assistant struct {
	model model.Capability

	mu    sync.Mutex
	chats map[string]model.Chat
}

func NewAssistant(m model.Capability) *Assistant {
	return &Assistant{
		model: m,
		chats: make(map[string]model.Chat),
	}
}

// Ask sends the question to the user's chat. Model failures are answered with a fixed
// apology so the conversation can continue.
func (a *Assistant) Ask(ctx context.Context, userID, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return Greeting
	}
	c, err := a.chatFor(ctx, userID)
	if err != nil {
		slog.Error("failed to start trainer chat", "error", err, "user_id", userID)
		return GlitchReply
	}
	reply, err := c.Send(ctx, question)
	if err != nil {
		slog.Error("trainer chat message failed", "error", err, "user_id", userID)
		return GlitchReply
	}
	return reply
}

// Reset forgets the user's conversation history.
func (a *Assistant) Reset(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.chats, userID)
}

func (a *Assistant) chatFor(ctx context.Context, userID string) (model.Chat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.chats[userID]; ok {
		return c, nil
	}
	c, err := a.model.StartChat(ctx, model.ChatRequest{SystemInstruction: systemInstruction})
	if err != nil {
		return nil, err
	}
	a.chats[userID] = c
	return c, nil
}
