package model

import (
	"context"

	"github.com/foxseedlab/gymvoice/internal/config"
	"github.com/foxseedlab/gymvoice/internal/model"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (model.Capability, error) {
		c := do.MustInvoke[*config.Config](i)
		g, err := NewGemini(context.Background(), GeminiConfig{
			APIKey:          c.GeminiAPIKey,
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Location:        c.GoogleCloudLocation,
			ParseModel:      c.GeminiParseModel,
			AnalysisModel:   c.GeminiAnalysisModel,
			VisionModel:     c.GeminiVisionModel,
			ChatModel:       c.GeminiChatModel,
			Timeout:         c.ModelTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	})
}
