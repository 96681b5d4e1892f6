package bot

import (
	"log/slog"
	"time"

	"github.com/foxseedlab/gymvoice/internal/audio"
	"github.com/foxseedlab/gymvoice/internal/chat"
	"github.com/foxseedlab/gymvoice/internal/config"
	"github.com/foxseedlab/gymvoice/internal/discord"
	"github.com/foxseedlab/gymvoice/internal/equipment"
	"github.com/foxseedlab/gymvoice/internal/model"
	"github.com/foxseedlab/gymvoice/internal/parser"
	"github.com/foxseedlab/gymvoice/internal/report"
	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/transcriber"
	"github.com/foxseedlab/gymvoice/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*time.Location, error) {
		cfg := do.MustInvoke[*config.Config](i)
		loc, err := time.LoadLocation(cfg.ReportTimezone)
		if err != nil {
			slog.Warn("invalid report timezone; using UTC", "timezone", cfg.ReportTimezone, "error", err)
			return time.UTC, nil
		}
		return loc, nil
	})
	do.Provide(injector, func(i do.Injector) (*parser.Service, error) {
		return parser.NewService(do.MustInvoke[model.Capability](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*equipment.Identifier, error) {
		return equipment.NewIdentifier(do.MustInvoke[model.Capability](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*chat.Assistant, error) {
		return chat.NewAssistant(do.MustInvoke[model.Capability](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*report.Generator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return report.NewGenerator(
			do.MustInvoke[model.Capability](i),
			do.MustInvoke[repository.History](i),
			do.MustInvoke[webhook.Sender](i),
			cfg.ReportTimezone,
			do.MustInvoke[*time.Location](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dc := do.MustInvoke[discord.Client](i)
		return NewManager(cfg, dc, Deps{
			Store:      do.MustInvoke[repository.History](i),
			Parser:     do.MustInvoke[*parser.Service](i),
			Identifier: do.MustInvoke[*equipment.Identifier](i),
			Generator:  do.MustInvoke[*report.Generator](i),
			Assistant:  do.MustInvoke[*chat.Assistant](i),
			STT:        do.MustInvoke[transcriber.Transcriber](i),
			NewDecoder: do.MustInvoke[audio.DecoderFactory](i),
			Location:   do.MustInvoke[*time.Location](i),
		}), nil
	})
}
