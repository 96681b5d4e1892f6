package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/gymvoice/internal/audio"
	"github.com/foxseedlab/gymvoice/internal/chat"
	"github.com/foxseedlab/gymvoice/internal/config"
	"github.com/foxseedlab/gymvoice/internal/discord"
	"github.com/foxseedlab/gymvoice/internal/report"
	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/session"
	"github.com/foxseedlab/gymvoice/internal/speech"
	"github.com/foxseedlab/gymvoice/internal/transcriber"
	"github.com/foxseedlab/gymvoice/internal/workout"
)

const (
	commandWorkoutStart   = "workout-start"
	commandLog            = "log"
	commandListen         = "listen"
	commandListenStop     = "listen-stop"
	commandEquipment      = "equipment"
	commandWorkoutEnd     = "workout-end"
	commandWorkoutDiscard = "workout-discard"
	commandHistory        = "history"
	commandReport         = "report"
	commandAsk            = "ask"

	optionEntry    = "entry"
	optionPhoto    = "photo"
	optionWeight   = "weight"
	optionHeight   = "height"
	optionID       = "id"
	optionQuestion = "question"

	historyLimit = 10
)

type editFunc func(content string, files ...discord.FileAttachment) error

// Manager routes slash commands to one workout state machine per Discord user.
type Manager struct {
	cfg        *config.Config
	discord    discord.Client
	store      repository.History
	parser     session.ExerciseParser
	identifier session.EquipmentIdentifier
	generator  *report.Generator
	assistant  *chat.Assistant
	stt        transcriber.Transcriber
	newDecoder audio.DecoderFactory
	loc        *time.Location
	lease      voiceLease

	mu             sync.Mutex
	users          map[string]*userState
	pendingReports map[string]*pendingReport
	botUserID      string
}

type userState struct {
	machine *session.Machine
	engine  *voiceEngine
}

// pendingReport is the deferred /workout-end response still waiting for its analysis.
type pendingReport struct {
	mu    sync.Mutex
	edit  editFunc
	final bool
}

type Deps struct {
	Store      repository.History
	Parser     session.ExerciseParser
	Identifier session.EquipmentIdentifier
	Generator  *report.Generator
	Assistant  *chat.Assistant
	STT        transcriber.Transcriber
	NewDecoder audio.DecoderFactory
	Location   *time.Location
}

func NewManager(cfg *config.Config, dc discord.Client, deps Deps) *Manager {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	m := &Manager{
		cfg:            cfg,
		discord:        dc,
		store:          deps.Store,
		parser:         deps.Parser,
		identifier:     deps.Identifier,
		generator:      deps.Generator,
		assistant:      deps.Assistant,
		stt:            deps.STT,
		newDecoder:     deps.NewDecoder,
		loc:            loc,
		users:          make(map[string]*userState),
		pendingReports: make(map[string]*pendingReport),
	}
	m.generator.OnAnalyzed(m.deliverReport)
	return m
}

func (m *Manager) SetBotUserID(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = userID
}

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{Name: commandWorkoutStart, Description: slashCommandStartDescription},
		{Name: commandLog, Description: slashCommandLogDescription, Options: []discord.SlashCommandOption{
			{Name: optionEntry, Description: optionEntryDescription, Type: discord.OptionString, Required: true},
		}},
		{Name: commandListen, Description: slashCommandListenDescription},
		{Name: commandListenStop, Description: slashCommandStopDescription},
		{Name: commandEquipment, Description: slashCommandPhotoDescription, Options: []discord.SlashCommandOption{
			{Name: optionPhoto, Description: optionPhotoDescription, Type: discord.OptionAttachment, Required: true},
		}},
		{Name: commandWorkoutEnd, Description: slashCommandEndDescription, Options: []discord.SlashCommandOption{
			{Name: optionWeight, Description: optionWeightDescription, Type: discord.OptionNumber},
			{Name: optionHeight, Description: optionHeightDescription, Type: discord.OptionString},
		}},
		{Name: commandWorkoutDiscard, Description: slashCommandDiscardDescription},
		{Name: commandHistory, Description: slashCommandHistoryDescription},
		{Name: commandReport, Description: slashCommandReportDescription, Options: []discord.SlashCommandOption{
			{Name: optionID, Description: optionIDDescription, Type: discord.OptionString, Required: true},
		}},
		{Name: commandAsk, Description: slashCommandAskDescription, Options: []discord.SlashCommandOption{
			{Name: optionQuestion, Description: optionQuestionDescription, Type: discord.OptionString, Required: true},
		}},
	}
}

func (m *Manager) HandleSlashCommand(event discord.SlashCommandEvent) {
	slog.Info("slash command received", "command", event.CommandName, "guild_id", event.GuildID, "user_id", event.UserID)
	if event.GuildID != m.cfg.DiscordGuildID {
		m.respond(event, messageEphemeralWrongGuild)
		return
	}

	switch event.CommandName {
	case commandWorkoutStart:
		m.handleWorkoutStart(event)
	case commandLog:
		m.deferred(event, m.handleLog)
	case commandListen:
		m.handleListen(event)
	case commandListenStop:
		m.handleListenStop(event)
	case commandEquipment:
		m.handleEquipment(event)
	case commandWorkoutEnd:
		m.deferred(event, m.handleWorkoutEnd)
	case commandWorkoutDiscard:
		m.handleWorkoutDiscard(event)
	case commandHistory:
		m.handleHistory(event)
	case commandReport:
		m.deferred(event, m.handleReport)
	case commandAsk:
		m.deferred(event, m.handleAsk)
	default:
		m.respond(event, messageEphemeralUnknownCommand)
	}
}

// HandleVoiceStateUpdate stops capture when its member leaves the channel being
// listened to, or when the bot itself is disconnected.
func (m *Manager) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	if event.GuildID != m.cfg.DiscordGuildID {
		return
	}
	if event.BeforeChannelID == event.AfterChannelID {
		return
	}

	m.mu.Lock()
	botUserID := m.botUserID
	var targets []*userState
	if event.UserID == botUserID && event.AfterChannelID == "" {
		for _, st := range m.users {
			targets = append(targets, st)
		}
	} else if st, ok := m.users[event.UserID]; ok {
		targets = append(targets, st)
	}
	m.mu.Unlock()

	for _, st := range targets {
		channelID := st.engine.ChannelID()
		if channelID == "" || channelID == event.AfterChannelID {
			continue
		}
		slog.Info("stopping voice capture after channel change", "user_id", st.engine.userID, "channel_id", channelID, "bot", event.UserID == botUserID)
		if err := st.machine.StopVoice(); err != nil {
			slog.Warn("failed to stop voice capture", "error", err, "user_id", st.engine.userID)
		}
	}
}

// Close stops every running voice capture.
func (m *Manager) Close() {
	m.mu.Lock()
	users := make([]*userState, 0, len(m.users))
	for _, st := range m.users {
		users = append(users, st)
	}
	m.mu.Unlock()
	for _, st := range users {
		if err := st.machine.StopVoice(); err != nil {
			slog.Warn("failed to stop voice capture", "error", err, "user_id", st.engine.userID)
		}
	}
}

func (m *Manager) userFor(userID string) *userState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.users[userID]; ok {
		return st
	}
	engine := &voiceEngine{
		discord:    m.discord,
		stt:        m.stt,
		newDecoder: m.newDecoder,
		lease:      &m.lease,
		guildID:    m.cfg.DiscordGuildID,
		userID:     userID,
		language:   m.cfg.SpeechLanguage,
		enabled:    m.cfg.HasGoogleCloud() && m.stt != nil,
	}
	machine := session.NewMachine(userID, m.parser, m.identifier, speech.NewCapture(engine), m.store, m.generator, session.Displays{
		Success: m.cfg.SuccessDisplay(),
		Error:   m.cfg.ErrorDisplay(),
	})
	machine.OnChange(func(snap session.Snapshot) {
		slog.Debug("workout status changed", "user_id", userID, "status", snap.Status, "message", snap.Message)
	})
	st := &userState{machine: machine, engine: engine}
	m.users[userID] = st
	return st
}

func (m *Manager) handleWorkoutStart(event discord.SlashCommandEvent) {
	if _, err := m.userFor(event.UserID).machine.BeginSession(); err != nil {
		if errors.Is(err, session.ErrSessionActive) {
			m.respond(event, messageEphemeralAlreadyActive)
			return
		}
		slog.Error("failed to start workout", "error", err, "user_id", event.UserID)
		m.respond(event, messageEphemeralStartFailed)
		return
	}
	m.assistant.Reset(event.UserID)
	m.respond(event, messageWorkoutStarted)
}

func (m *Manager) handleLog(ctx context.Context, event discord.SlashCommandEvent) string {
	ex, err := m.userFor(event.UserID).machine.SubmitTextEntry(ctx, event.StringOption(optionEntry))
	if err != nil {
		return errorMessage(err)
	}
	return loggedMessage(ex)
}

func (m *Manager) handleListen(event discord.SlashCommandEvent) {
	st := m.userFor(event.UserID)
	if !st.machine.Active() {
		m.respond(event, messageEphemeralNoWorkout)
		return
	}
	channelID, err := m.discord.GetUserVoiceChannelID(event.GuildID, event.UserID)
	if err != nil {
		slog.Error("failed to lookup user voice channel", "error", err, "guild_id", event.GuildID, "user_id", event.UserID)
		m.respond(event, messageEphemeralLookupFailed)
		return
	}
	if channelID == "" {
		m.respond(event, messageEphemeralJoinVCFirst)
		return
	}
	if event.Defer != nil {
		if err := event.Defer(); err != nil {
			slog.Error("failed to defer interaction", "error", err, "command", event.CommandName)
			return
		}
	}

	done, err := st.machine.StartVoice(context.Background())
	if err != nil {
		m.edit(event.EditResponse, errorMessage(err))
		return
	}
	m.edit(event.EditResponse, listeningMessage(channelID))

	go func() {
		err, ok := <-done
		if !ok {
			return
		}
		switch {
		case err == nil:
			m.edit(event.EditResponse, m.lastLogged(st.machine))
		case errors.Is(err, speech.ErrStopped):
			m.edit(event.EditResponse, messageListenStopped)
		default:
			m.edit(event.EditResponse, errorMessage(err))
		}
	}()
}

func (m *Manager) lastLogged(machine *session.Machine) string {
	snap := machine.Snapshot()
	if snap.Session == nil || len(snap.Session.Exercises) == 0 {
		return loggedMessage(workout.Exercise{Name: "Exercise"})
	}
	return loggedMessage(snap.Session.Exercises[len(snap.Session.Exercises)-1])
}

func (m *Manager) handleListenStop(event discord.SlashCommandEvent) {
	st := m.userFor(event.UserID)
	if st.machine.Snapshot().Status != session.StatusListening {
		m.respond(event, messageEphemeralNotListening)
		return
	}
	if err := st.machine.StopVoice(); err != nil {
		slog.Warn("failed to stop voice capture", "error", err, "user_id", event.UserID)
	}
	m.respond(event, messageListenStopSent)
}

func (m *Manager) handleEquipment(event discord.SlashCommandEvent) {
	attachment, ok := event.AttachmentOption(optionPhoto)
	if !ok {
		m.respond(event, messageEphemeralNoPhoto)
		return
	}
	if !strings.HasPrefix(attachment.ContentType, "image/") {
		m.respond(event, messageEphemeralNotImage)
		return
	}
	m.deferred(event, func(ctx context.Context, event discord.SlashCommandEvent) string {
		st := m.userFor(event.UserID)
		if !st.machine.Active() {
			return messageEphemeralNoWorkout
		}
		image, err := m.discord.DownloadAttachment(ctx, attachment)
		if err != nil {
			slog.Error("failed to download attachment", "error", err, "attachment_id", attachment.ID)
			return errorMessage(err)
		}
		name, err := st.machine.SubmitImage(ctx, image, attachment.ContentType)
		if err != nil {
			return errorMessage(err)
		}
		return identifiedMessage(name)
	})
}

// handleWorkoutEnd answers with the deterministic stats right away. The same response
// is edited into the full report once the analysis lands.
func (m *Manager) handleWorkoutEnd(ctx context.Context, event discord.SlashCommandEvent) string {
	st := m.userFor(event.UserID)
	snap := st.machine.Snapshot()
	if snap.Session == nil {
		return messageEphemeralNoWorkout
	}

	pending := &pendingReport{edit: event.EditResponse}
	m.mu.Lock()
	m.pendingReports[snap.Session.ID] = pending
	m.mu.Unlock()

	weight := ""
	if v, ok := event.NumberOption(optionWeight); ok && v > 0 {
		weight = strconv.FormatFloat(v, 'f', -1, 64)
	}
	final, stats, err := st.machine.EndSession(ctx, weight, event.StringOption(optionHeight))
	if err != nil || final.ID != snap.Session.ID {
		m.mu.Lock()
		delete(m.pendingReports, snap.Session.ID)
		m.mu.Unlock()
		if err == nil {
			err = session.ErrStaleResult
		}
		return errorMessage(err)
	}

	pending.mu.Lock()
	defer pending.mu.Unlock()
	if !pending.final {
		m.edit(pending.edit, endedMessage(stats))
	}
	return ""
}

// deliverReport edits the pending /workout-end response into the finished report.
func (m *Manager) deliverReport(s workout.Session) {
	m.mu.Lock()
	pending, ok := m.pendingReports[s.ID]
	delete(m.pendingReports, s.ID)
	m.mu.Unlock()
	if !ok {
		return
	}

	pending.mu.Lock()
	defer pending.mu.Unlock()
	pending.final = true
	stats := report.Summarize(s, time.Now())
	m.edit(pending.edit, reportMessage(s, stats, m.loc), m.reportFile(s, stats))
}

func (m *Manager) handleWorkoutDiscard(event discord.SlashCommandEvent) {
	if err := m.userFor(event.UserID).machine.Discard(); err != nil {
		m.respond(event, errorMessage(err))
		return
	}
	m.respond(event, messageWorkoutDiscard)
}

func (m *Manager) handleHistory(event discord.SlashCommandEvent) {
	sessions, err := m.store.List(context.Background(), repository.ListFilter{OwnerID: event.UserID, Limit: historyLimit})
	if err != nil {
		slog.Error("failed to list workout history", "error", err, "user_id", event.UserID)
		m.respond(event, messageEphemeralHistoryFailed)
		return
	}
	m.respond(event, historyMessage(sessions, m.loc))
}

func (m *Manager) handleReport(ctx context.Context, event discord.SlashCommandEvent) string {
	id := strings.TrimSpace(event.StringOption(optionID))
	stored, err := m.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && stored.OwnerID != event.UserID) {
		return messageReportNotFound
	}
	if err != nil {
		slog.Error("failed to load workout", "error", err, "session_id", id)
		return messageReportFailed
	}

	s := *stored
	if s.Analysis == nil {
		s, err = m.generator.Generate(ctx, s)
		if err != nil {
			slog.Error("failed to generate workout report", "error", err, "session_id", id)
			return messageReportFailed
		}
	}
	stats := report.Summarize(s, time.Now())
	m.edit(event.EditResponse, reportMessage(s, stats, m.loc), m.reportFile(s, stats))
	return ""
}

func (m *Manager) handleAsk(ctx context.Context, event discord.SlashCommandEvent) string {
	question := event.StringOption(optionQuestion)
	answer := m.assistant.Ask(ctx, event.UserID, question)
	if strings.TrimSpace(question) == "" {
		return truncate(answer)
	}
	return truncate("> " + strings.TrimSpace(question) + "\n" + answer)
}

func (m *Manager) reportFile(s workout.Session, stats report.Stats) discord.FileAttachment {
	return discord.FileAttachment{
		Filename: reportFilename(s, m.loc),
		Body:     []byte(report.FormatText(s, stats, m.loc)),
	}
}

// deferred acknowledges the interaction and edits it with the handler's reply. An empty
// reply means the handler already edited the response itself.
func (m *Manager) deferred(event discord.SlashCommandEvent, handle func(context.Context, discord.SlashCommandEvent) string) {
	if event.Defer != nil {
		if err := event.Defer(); err != nil {
			slog.Error("failed to defer interaction", "error", err, "command", event.CommandName)
			return
		}
	}
	if reply := handle(context.Background(), event); reply != "" {
		m.edit(event.EditResponse, reply)
	}
}

func (m *Manager) respond(event discord.SlashCommandEvent, content string) {
	if event.RespondEphemeral == nil {
		return
	}
	if err := event.RespondEphemeral(content); err != nil {
		slog.Error("failed to send ephemeral response", "error", err, "command", event.CommandName)
	}
}

func (m *Manager) edit(fn editFunc, content string, files ...discord.FileAttachment) {
	if fn == nil {
		return
	}
	if err := fn(content, files...); err != nil {
		slog.Error("failed to edit interaction response", "error", err)
	}
}
