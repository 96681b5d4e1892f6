package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/gymvoice/internal/parser"
	"github.com/foxseedlab/gymvoice/internal/report"
	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/speech"
	"github.com/foxseedlab/gymvoice/internal/workout"
	"github.com/google/uuid"
)

type Status string

const (
	StatusIdle            Status = "idle"
	StatusListening       Status = "listening"
	StatusProcessingText  Status = "processingText"
	StatusProcessingImage Status = "processingImage"
	StatusError           Status = "error"
	StatusSuccess         Status = "success"
)

var (
	ErrNoActiveSession = errors.New("no workout session is active")
	ErrSessionActive   = errors.New("a workout session is already active")
	ErrBusy            = errors.New("another entry is still being processed")
	ErrEntryInFlight   = errors.New("cannot end the workout while an entry is being processed")
	ErrNoExercises     = errors.New("log at least one exercise before ending the workout")
	ErrEmptyEntry      = errors.New("entry text is empty")
	ErrStaleResult     = errors.New("result belongs to a session that is no longer active")
	ErrSessionEnding   = errors.New("the workout is being saved")
)

type ExerciseParser interface {
	Parse(ctx context.Context, text, equipmentContext string) (workout.Exercise, error)
}

type EquipmentIdentifier interface {
	Identify(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Finalizer computes report stats and kicks off the one analysis for a completed session.
type Finalizer interface {
	Ensure(ctx context.Context, s workout.Session) (report.Stats, bool)
}

// Displays controls how long a success or error status stays visible before the
// machine returns to idle on its own.
type Displays struct {
	Success time.Duration
	Error   time.Duration
}

type Snapshot struct {
	Status              Status
	Message             string
	IdentifiedEquipment string
	Session             *workout.Session
}

// Machine owns one user's active workout session and drives its capture status.
// At most one entry is processed at a time.
type Machine struct {
	ownerID    string
	parser     ExerciseParser
	identifier EquipmentIdentifier
	capture    *speech.Capture
	store      repository.History
	finalizer  Finalizer
	displays   Displays

	now   func() time.Time
	after func(time.Duration, func())

	mu          sync.Mutex
	session     *workout.Session
	status      Status
	errMessage  string
	equipment   string
	ending      bool
	entryToken  uint64
	statusToken uint64
	observers   []func(Snapshot)
}

func NewMachine(ownerID string, p ExerciseParser, id EquipmentIdentifier, capture *speech.Capture, store repository.History, fin Finalizer, displays Displays) *Machine {
	return &Machine{
		ownerID:    ownerID,
		parser:     p,
		identifier: id,
		capture:    capture,
		store:      store,
		finalizer:  fin,
		displays:   displays,
		now:        time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		status: StatusIdle,
	}
}

// OnChange registers an observer called after every status transition.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

func (m *Machine) BeginSession() (workout.Session, error) {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return workout.Session{}, ErrSessionActive
	}
	m.session = &workout.Session{
		ID:        uuid.NewString(),
		OwnerID:   m.ownerID,
		StartTime: m.now().UTC().Truncate(time.Millisecond),
		Exercises: []workout.Exercise{},
	}
	m.equipment = ""
	m.setStatusLocked(StatusIdle, "")
	out := m.session.Clone()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	slog.Info("workout session started", "session_id", out.ID, "owner_id", m.ownerID)
	m.notify(snap)
	return out, nil
}

func (m *Machine) SubmitTextEntry(ctx context.Context, text string) (workout.Exercise, error) {
	return m.submitEntry(ctx, text)
}

func (m *Machine) SubmitVoiceEntry(ctx context.Context, transcript string) (workout.Exercise, error) {
	return m.submitEntry(ctx, transcript)
}

func (m *Machine) submitEntry(ctx context.Context, text string) (workout.Exercise, error) {
	if strings.TrimSpace(text) == "" {
		return workout.Exercise{}, ErrEmptyEntry
	}

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return workout.Exercise{}, ErrNoActiveSession
	}
	if m.ending {
		m.mu.Unlock()
		return workout.Exercise{}, ErrSessionEnding
	}
	if m.processingLocked() {
		m.mu.Unlock()
		return workout.Exercise{}, ErrBusy
	}
	sessionID := m.session.ID
	equipmentContext := m.equipment
	m.entryToken++
	token := m.entryToken
	m.setStatusLocked(StatusProcessingText, "")
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	ex, err := m.parser.Parse(ctx, text, equipmentContext)

	m.mu.Lock()
	if !m.currentLocked(sessionID, token) {
		m.mu.Unlock()
		slog.Info("dropping stale entry result", "session_id", sessionID)
		return workout.Exercise{}, ErrStaleResult
	}
	if err != nil {
		m.showLocked(StatusError, entryErrorMessage(err), m.displays.Error)
		snap = m.snapshotLocked()
		m.mu.Unlock()
		slog.Warn("failed to parse workout entry", "error", err, "session_id", sessionID)
		m.notify(snap)
		return workout.Exercise{}, err
	}
	m.session.Exercises = append(m.session.Exercises, ex)
	m.equipment = ""
	m.showLocked(StatusSuccess, "", m.displays.Success)
	snap = m.snapshotLocked()
	m.mu.Unlock()

	slog.Info("exercise logged", "session_id", sessionID, "exercise", ex.Name)
	m.notify(snap)
	return ex, nil
}

// SubmitImage identifies equipment from a photo. The name becomes context for the
// next entry only.
func (m *Machine) SubmitImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return "", ErrNoActiveSession
	}
	if m.ending {
		m.mu.Unlock()
		return "", ErrSessionEnding
	}
	if m.processingLocked() {
		m.mu.Unlock()
		return "", ErrBusy
	}
	sessionID := m.session.ID
	m.entryToken++
	token := m.entryToken
	m.setStatusLocked(StatusProcessingImage, "")
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	name, err := m.identifier.Identify(ctx, image, mimeType)

	m.mu.Lock()
	if !m.currentLocked(sessionID, token) {
		m.mu.Unlock()
		return "", ErrStaleResult
	}
	if err != nil {
		m.showLocked(StatusError, "Failed to identify image.", m.displays.Error)
		snap = m.snapshotLocked()
		m.mu.Unlock()
		slog.Warn("failed to identify equipment", "error", err, "session_id", sessionID)
		m.notify(snap)
		return "", err
	}
	m.equipment = name
	m.setStatusLocked(StatusIdle, "")
	snap = m.snapshotLocked()
	m.mu.Unlock()

	slog.Info("equipment identified", "session_id", sessionID, "equipment", name)
	m.notify(snap)
	return name, nil
}

// StartVoice starts a dictation cycle. A final transcript is submitted as a voice entry;
// the returned channel yields that entry's outcome.
func (m *Machine) StartVoice(ctx context.Context) (<-chan error, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if m.ending {
		m.mu.Unlock()
		return nil, ErrSessionEnding
	}
	if m.processingLocked() {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	sessionID := m.session.ID
	m.mu.Unlock()

	if m.capture == nil {
		m.fail(speech.ErrUnsupported)
		return nil, speech.ErrUnsupported
	}
	results, err := m.capture.Start(ctx)
	if err != nil {
		m.fail(err)
		return nil, err
	}

	// An entry or the end of the session may have started while the engine was starting.
	m.mu.Lock()
	if m.session == nil || m.session.ID != sessionID || m.ending || m.processingLocked() {
		m.mu.Unlock()
		if err := m.capture.Stop(); err != nil {
			slog.Warn("failed to stop speech capture", "error", err)
		}
		return nil, ErrBusy
	}
	if m.status != StatusListening {
		m.setStatusLocked(StatusListening, "")
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	done := make(chan error, 1)
	go func() {
		defer close(done)
		res, ok := <-results
		if !ok {
			return
		}
		done <- m.handleVoiceResult(ctx, res)
	}()
	return done, nil
}

func (m *Machine) StopVoice() error {
	if m.capture == nil {
		return nil
	}
	return m.capture.Stop()
}

func (m *Machine) handleVoiceResult(ctx context.Context, res speech.Result) error {
	switch {
	case res.Err == nil:
		_, err := m.SubmitVoiceEntry(ctx, res.Transcript)
		return err
	case errors.Is(res.Err, speech.ErrStopped):
		m.mu.Lock()
		if m.status != StatusListening {
			m.mu.Unlock()
			return res.Err
		}
		m.setStatusLocked(StatusIdle, "")
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.notify(snap)
		return res.Err
	default:
		m.fail(res.Err)
		return res.Err
	}
}

// EndSession completes the active session, appends it to the history store and starts
// the report. It does not wait for the analysis.
func (m *Machine) EndSession(ctx context.Context, userWeight, userHeight string) (workout.Session, report.Stats, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return workout.Session{}, report.Stats{}, ErrNoActiveSession
	}
	if m.ending {
		m.mu.Unlock()
		return workout.Session{}, report.Stats{}, ErrSessionEnding
	}
	if m.processingLocked() {
		m.mu.Unlock()
		return workout.Session{}, report.Stats{}, ErrEntryInFlight
	}
	if len(m.session.Exercises) == 0 {
		m.mu.Unlock()
		return workout.Session{}, report.Stats{}, ErrNoExercises
	}
	final := m.session.Clone()
	end := m.now().UTC().Truncate(time.Millisecond)
	final.EndTime = &end
	final.UserWeight = profileWeight(userWeight)
	final.UserHeight = strings.TrimSpace(userHeight)
	listening := m.status == StatusListening
	m.ending = true
	m.mu.Unlock()

	if err := m.store.Append(ctx, final); err != nil {
		m.mu.Lock()
		m.ending = false
		m.mu.Unlock()
		slog.Error("failed to append workout session", "error", err, "session_id", final.ID)
		return workout.Session{}, report.Stats{}, fmt.Errorf("append session: %w", err)
	}
	if listening {
		if err := m.StopVoice(); err != nil {
			slog.Warn("failed to stop speech capture", "error", err)
		}
	}

	m.mu.Lock()
	m.ending = false
	if m.session != nil && m.session.ID == final.ID {
		m.session = nil
		m.entryToken++
		m.equipment = ""
		m.setStatusLocked(StatusIdle, "")
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	stats, started := m.finalizer.Ensure(ctx, final)
	slog.Info("workout session ended", "session_id", final.ID, "exercises", stats.ExerciseCount, "analysis_started", started)
	return final, stats, nil
}

// Discard drops the active session without storing it. Results still in flight for it
// are ignored when they arrive.
func (m *Machine) Discard() error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	if m.ending {
		m.mu.Unlock()
		return ErrSessionEnding
	}
	id := m.session.ID
	listening := m.status == StatusListening
	m.session = nil
	m.entryToken++
	m.equipment = ""
	m.setStatusLocked(StatusIdle, "")
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if listening {
		if err := m.StopVoice(); err != nil {
			slog.Warn("failed to stop speech capture", "error", err)
		}
	}
	slog.Info("workout session discarded", "session_id", id)
	m.notify(snap)
	return nil
}

func (m *Machine) fail(err error) {
	m.mu.Lock()
	m.showLocked(StatusError, captureErrorMessage(err), m.displays.Error)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

func (m *Machine) processingLocked() bool {
	return m.status == StatusProcessingText || m.status == StatusProcessingImage
}

func (m *Machine) currentLocked(sessionID string, token uint64) bool {
	return m.session != nil && m.session.ID == sessionID && m.entryToken == token
}

func (m *Machine) setStatusLocked(status Status, errMessage string) {
	m.status = status
	m.errMessage = errMessage
	m.statusToken++
}

// showLocked sets a transient status that falls back to idle after d unless another
// transition happened first.
func (m *Machine) showLocked(status Status, errMessage string, d time.Duration) {
	m.setStatusLocked(status, errMessage)
	token := m.statusToken
	m.after(d, func() {
		m.mu.Lock()
		if m.statusToken != token {
			m.mu.Unlock()
			return
		}
		m.setStatusLocked(StatusIdle, "")
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.notify(snap)
	})
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:              m.status,
		Message:             statusText(m.status, m.errMessage, m.equipment),
		IdentifiedEquipment: m.equipment,
	}
	if m.session != nil {
		s := m.session.Clone()
		snap.Session = &s
	}
	return snap
}

func (m *Machine) notify(snap Snapshot) {
	m.mu.Lock()
	observers := append([]func(Snapshot){}, m.observers...)
	m.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

func entryErrorMessage(err error) string {
	if errors.Is(err, parser.ErrParseFailed) {
		return "Could not understand that entry. Please try again."
	}
	return "Failed to parse exercise."
}

func captureErrorMessage(err error) string {
	switch {
	case errors.Is(err, speech.ErrUnsupported):
		return "Voice input is not available here. Use text entry instead."
	case errors.Is(err, speech.ErrPermissionDenied):
		return "Microphone permission denied."
	default:
		return "Speech recognition failed. Please try again."
	}
}

// profileWeight records a bare number as pounds and keeps anything else as typed.
func profileWeight(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v + " lbs"
	}
	return v
}
