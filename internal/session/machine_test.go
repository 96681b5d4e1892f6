package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/gymvoice/internal/parser"
	"github.com/foxseedlab/gymvoice/internal/report"
	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/speech"
	"github.com/foxseedlab/gymvoice/internal/workout"
)

type mockParser struct {
	mu       sync.Mutex
	contexts []string
	fail     map[string]bool
	gate     chan struct{}
}

func (m *mockParser) Parse(_ context.Context, text, equipmentContext string) (workout.Exercise, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	m.contexts = append(m.contexts, equipmentContext)
	m.mu.Unlock()
	if m.fail[text] {
		return workout.Exercise{}, parser.ErrParseFailed
	}
	return workout.Exercise{Name: text, SourceText: text}, nil
}

type mockIdentifier struct {
	name string
	err  error
}

func (m *mockIdentifier) Identify(_ context.Context, _ []byte, _ string) (string, error) {
	return m.name, m.err
}

type mockHistory struct {
	mu       sync.Mutex
	appended []workout.Session
	err      error

	// When set, Append closes appending and then waits for release.
	appending chan struct{}
	release   chan struct{}
}

func (m *mockHistory) List(context.Context, repository.ListFilter) ([]workout.Session, error) {
	return nil, nil
}

func (m *mockHistory) Get(context.Context, string) (*workout.Session, error) {
	return nil, repository.ErrNotFound
}

func (m *mockHistory) Append(_ context.Context, s workout.Session) error {
	if m.release != nil {
		close(m.appending)
		<-m.release
	}
	if m.err != nil {
		return m.err
	}
	if err := repository.ValidateAppend(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, s.Clone())
	return nil
}

func (m *mockHistory) UpdateByID(context.Context, string, repository.Patch) error {
	return nil
}

type mockFinalizer struct {
	ensured []workout.Session
}

func (m *mockFinalizer) Ensure(_ context.Context, s workout.Session) (report.Stats, bool) {
	m.ensured = append(m.ensured, s)
	return report.Summarize(s, time.Now()), true
}

type mockEngine struct {
	mu        sync.Mutex
	supported bool
	listener  speech.Listener
	stops     int
}

func (e *mockEngine) Supported() bool { return e.supported }

func (e *mockEngine) Start(_ context.Context, l speech.Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
	return nil
}

func (e *mockEngine) Stop() error {
	e.mu.Lock()
	e.stops++
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		l.OnEnd()
	}
	return nil
}

// gatedEngine blocks Start until released.
type gatedEngine struct {
	*mockEngine
	starting chan struct{}
	release  chan struct{}
}

func (e *gatedEngine) Start(ctx context.Context, l speech.Listener) error {
	close(e.starting)
	<-e.release
	return e.mockEngine.Start(ctx, l)
}

// manualTimers records scheduled display timeouts so tests fire them explicitly.
type manualTimers struct {
	mu    sync.Mutex
	funcs []func()
}

func (m *manualTimers) after(_ time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, f)
}

func (m *manualTimers) fireAll() {
	m.mu.Lock()
	funcs := m.funcs
	m.funcs = nil
	m.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

type fixture struct {
	machine   *Machine
	parser    *mockParser
	store     *mockHistory
	finalizer *mockFinalizer
	timers    *manualTimers
}

func newFixture(engine speech.Engine) *fixture {
	f := &fixture{
		parser:    &mockParser{fail: map[string]bool{}},
		store:     &mockHistory{},
		finalizer: &mockFinalizer{},
		timers:    &manualTimers{},
	}
	var capture *speech.Capture
	if engine != nil {
		capture = speech.NewCapture(engine)
	}
	f.machine = NewMachine("user-1", f.parser, &mockIdentifier{name: "Leg Press"}, capture, f.store, f.finalizer, Displays{Success: 1500 * time.Millisecond, Error: 3 * time.Second})
	f.machine.after = f.timers.after
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.machine.now = func() time.Time {
		clock = clock.Add(10 * time.Minute)
		return clock
	}
	return f
}

func TestMachine_TextEntryLifecycle(t *testing.T) {
	f := newFixture(nil)
	m := f.machine
	ctx := context.Background()

	if _, err := m.SubmitTextEntry(ctx, "bench"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	s, err := m.BeginSession()
	if err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	if s.ID == "" || s.OwnerID != "user-1" || s.EndTime != nil || len(s.Exercises) != 0 {
		t.Fatalf("unexpected new session: %+v", s)
	}
	if _, err := m.BeginSession(); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	if _, err := m.SubmitTextEntry(ctx, "bench 3x10"); err != nil {
		t.Fatalf("SubmitTextEntry returned error: %v", err)
	}
	snap := m.Snapshot()
	if snap.Status != StatusSuccess || snap.Message != "Exercise logged!" {
		t.Fatalf("unexpected snapshot after success: %+v", snap)
	}
	f.timers.fireAll()
	if got := m.Snapshot().Status; got != StatusIdle {
		t.Fatalf("expected idle after display window, got %s", got)
	}

	f.parser.fail["gibberish"] = true
	if _, err := m.SubmitTextEntry(ctx, "gibberish"); !errors.Is(err, parser.ErrParseFailed) {
		t.Fatalf("expected ErrParseFailed, got %v", err)
	}
	snap = m.Snapshot()
	if snap.Status != StatusError || !strings.HasPrefix(snap.Message, "Error: ") {
		t.Fatalf("unexpected snapshot after failure: %+v", snap)
	}
	if len(snap.Session.Exercises) != 1 {
		t.Fatalf("failed entry must not append, got %d exercises", len(snap.Session.Exercises))
	}
	f.timers.fireAll()
	if got := m.Snapshot().Status; got != StatusIdle {
		t.Fatalf("expected idle after error window, got %s", got)
	}
}

func TestMachine_StaleDisplayTimerIsIgnored(t *testing.T) {
	f := newFixture(nil)
	m := f.machine
	ctx := context.Background()
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	f.parser.fail["bad"] = true
	_, _ = m.SubmitTextEntry(ctx, "bad")
	if _, err := m.SubmitTextEntry(ctx, "row 3x12"); err != nil {
		t.Fatalf("SubmitTextEntry returned error: %v", err)
	}

	// Only the newest timer may move the status back to idle.
	f.timers.mu.Lock()
	first := f.timers.funcs[0]
	f.timers.mu.Unlock()
	first()
	if got := m.Snapshot().Status; got != StatusSuccess {
		t.Fatalf("old error timer must not clear the success status, got %s", got)
	}
}

func TestMachine_EquipmentContextIsSingleUse(t *testing.T) {
	f := newFixture(nil)
	m := f.machine
	ctx := context.Background()
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}

	name, err := m.SubmitImage(ctx, []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil || name != "Leg Press" {
		t.Fatalf("SubmitImage = %q, %v", name, err)
	}
	snap := m.Snapshot()
	if snap.Status != StatusIdle || snap.Message != "Identified: Leg Press. Tap mic to log details." {
		t.Fatalf("unexpected snapshot after identification: %+v", snap)
	}

	if _, err := m.SubmitTextEntry(ctx, "3 sets of 10 at 200"); err != nil {
		t.Fatalf("SubmitTextEntry returned error: %v", err)
	}
	if _, err := m.SubmitTextEntry(ctx, "plank 1 minute"); err != nil {
		t.Fatalf("SubmitTextEntry returned error: %v", err)
	}
	if f.parser.contexts[0] != "Leg Press" || f.parser.contexts[1] != "" {
		t.Fatalf("unexpected equipment contexts: %q", f.parser.contexts)
	}
}

func TestMachine_IdentificationFailure(t *testing.T) {
	f := newFixture(nil)
	m := f.machine
	m.identifier = &mockIdentifier{err: errors.New("vision unavailable")}
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	if _, err := m.SubmitImage(context.Background(), []byte{1}, "image/png"); err == nil {
		t.Fatal("expected identification error")
	}
	snap := m.Snapshot()
	if snap.Status != StatusError || snap.Message != "Error: Failed to identify image." {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestMachine_EndSession(t *testing.T) {
	f := newFixture(nil)
	m := f.machine
	ctx := context.Background()
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	if _, _, err := m.EndSession(ctx, "", ""); !errors.Is(err, ErrNoExercises) {
		t.Fatalf("expected ErrNoExercises, got %v", err)
	}
	if len(f.store.appended) != 0 {
		t.Fatal("empty session must never reach the store")
	}

	if _, err := m.SubmitTextEntry(ctx, "squat 5x5"); err != nil {
		t.Fatalf("SubmitTextEntry returned error: %v", err)
	}
	final, stats, err := m.EndSession(ctx, "180", "5'11\"")
	if err != nil {
		t.Fatalf("EndSession returned error: %v", err)
	}
	if final.EndTime == nil || !final.EndTime.After(final.StartTime) {
		t.Fatalf("unexpected end time: %+v", final.EndTime)
	}
	if final.UserWeight != "180 lbs" || final.UserHeight != "5'11\"" {
		t.Fatalf("unexpected profile: %q %q", final.UserWeight, final.UserHeight)
	}
	if stats.ExerciseCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(f.store.appended) != 1 || len(f.finalizer.ensured) != 1 {
		t.Fatalf("expected one append and one analysis, got %d and %d", len(f.store.appended), len(f.finalizer.ensured))
	}
	if m.Active() {
		t.Fatal("machine must not keep the ended session")
	}
}

func TestMachine_EndSessionKeepsSessionWhenStoreFails(t *testing.T) {
	f := newFixture(nil)
	m := f.machine
	ctx := context.Background()
	f.store.err = errors.New("disk full")
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	if _, err := m.SubmitTextEntry(ctx, "curl 3x12"); err != nil {
		t.Fatalf("SubmitTextEntry returned error: %v", err)
	}
	if _, _, err := m.EndSession(ctx, "", ""); err == nil {
		t.Fatal("expected store error")
	}
	if !m.Active() || len(f.finalizer.ensured) != 0 {
		t.Fatal("session must stay active when it could not be stored")
	}

	f.store.err = nil
	if _, err := m.SubmitTextEntry(ctx, "row 3x10"); err != nil {
		t.Fatalf("entries must be accepted again after a failed save: %v", err)
	}
	if _, _, err := m.EndSession(ctx, "", ""); err != nil {
		t.Fatalf("EndSession retry returned error: %v", err)
	}
	if got := len(f.store.appended[0].Exercises); got != 2 {
		t.Fatalf("expected 2 stored exercises, got %d", got)
	}
}

func TestMachine_EntriesRejectedWhileSessionIsSaved(t *testing.T) {
	f := newFixture(&mockEngine{supported: true})
	m := f.machine
	ctx := context.Background()
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	if _, err := m.SubmitTextEntry(ctx, "bench 3x8"); err != nil {
		t.Fatalf("SubmitTextEntry returned error: %v", err)
	}

	f.store.appending = make(chan struct{})
	f.store.release = make(chan struct{})
	endCh := make(chan error, 1)
	go func() {
		_, _, err := m.EndSession(ctx, "", "")
		endCh <- err
	}()
	<-f.store.appending

	if _, err := m.SubmitTextEntry(ctx, "squat 5x5"); !errors.Is(err, ErrSessionEnding) {
		t.Fatalf("expected ErrSessionEnding for a text entry, got %v", err)
	}
	if _, err := m.SubmitImage(ctx, []byte("img"), "image/png"); !errors.Is(err, ErrSessionEnding) {
		t.Fatalf("expected ErrSessionEnding for an image, got %v", err)
	}
	if _, err := m.StartVoice(ctx); !errors.Is(err, ErrSessionEnding) {
		t.Fatalf("expected ErrSessionEnding for voice, got %v", err)
	}
	if err := m.Discard(); !errors.Is(err, ErrSessionEnding) {
		t.Fatalf("expected ErrSessionEnding for discard, got %v", err)
	}
	if _, _, err := m.EndSession(ctx, "", ""); !errors.Is(err, ErrSessionEnding) {
		t.Fatalf("expected ErrSessionEnding for a second end, got %v", err)
	}

	close(f.store.release)
	if err := <-endCh; err != nil {
		t.Fatalf("EndSession returned error: %v", err)
	}
	if len(f.store.appended) != 1 || len(f.store.appended[0].Exercises) != 1 {
		t.Fatalf("unexpected stored sessions: %+v", f.store.appended)
	}
	if m.Active() {
		t.Fatal("session must be closed after it was stored")
	}
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession after end returned error: %v", err)
	}
}

func TestMachine_SingleFlightAndStaleResults(t *testing.T) {
	f := newFixture(nil)
	m := f.machine
	ctx := context.Background()
	f.parser.gate = make(chan struct{})
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}

	processing := make(chan struct{})
	m.OnChange(func(s Snapshot) {
		if s.Status == StatusProcessingText {
			select {
			case <-processing:
			default:
				close(processing)
			}
		}
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := m.SubmitTextEntry(ctx, "deadlift 1x5")
		errCh <- err
	}()
	<-processing

	if _, err := m.SubmitTextEntry(ctx, "another"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, _, err := m.EndSession(ctx, "", ""); !errors.Is(err, ErrEntryInFlight) {
		t.Fatalf("expected ErrEntryInFlight, got %v", err)
	}
	if err := m.Discard(); err != nil {
		t.Fatalf("Discard returned error: %v", err)
	}
	close(f.parser.gate)

	if err := <-errCh; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("expected ErrStaleResult, got %v", err)
	}
	if m.Active() || m.Snapshot().Status != StatusIdle {
		t.Fatalf("stale result must not touch the machine: %+v", m.Snapshot())
	}
	if len(f.store.appended) != 0 {
		t.Fatal("discarded session must not be stored")
	}
}

func TestMachine_StartVoiceYieldsToEntryStartedMeanwhile(t *testing.T) {
	engine := &gatedEngine{
		mockEngine: &mockEngine{supported: true},
		starting:   make(chan struct{}),
		release:    make(chan struct{}),
	}
	f := newFixture(engine)
	m := f.machine
	ctx := context.Background()
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}

	type startResult struct {
		done <-chan error
		err  error
	}
	voiceCh := make(chan startResult, 1)
	go func() {
		done, err := m.StartVoice(ctx)
		voiceCh <- startResult{done: done, err: err}
	}()
	<-engine.starting

	processing := make(chan struct{})
	m.OnChange(func(s Snapshot) {
		if s.Status == StatusProcessingText {
			select {
			case <-processing:
			default:
				close(processing)
			}
		}
	})
	f.parser.gate = make(chan struct{})
	textCh := make(chan error, 1)
	go func() {
		_, err := m.SubmitTextEntry(ctx, "bench 3x8")
		textCh <- err
	}()
	<-processing

	close(engine.release)
	res := <-voiceCh
	if !errors.Is(res.err, ErrBusy) || res.done != nil {
		t.Fatalf("expected ErrBusy from StartVoice, got %v", res.err)
	}
	if got := m.Snapshot().Status; got != StatusProcessingText {
		t.Fatalf("entry status must survive the rejected start, got %s", got)
	}
	if _, err := m.SubmitTextEntry(ctx, "squat 5x5"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for a second entry, got %v", err)
	}

	close(f.parser.gate)
	if err := <-textCh; err != nil {
		t.Fatalf("first entry returned error: %v", err)
	}
	snap := m.Snapshot()
	if len(snap.Session.Exercises) != 1 || snap.Session.Exercises[0].Name != "bench 3x8" {
		t.Fatalf("unexpected exercises: %+v", snap.Session.Exercises)
	}
	engine.mu.Lock()
	stops := engine.stops
	engine.mu.Unlock()
	if stops != 1 {
		t.Fatalf("expected the started capture to be stopped once, got %d", stops)
	}
}

func TestMachine_VoiceEntry(t *testing.T) {
	engine := &mockEngine{supported: true}
	f := newFixture(engine)
	m := f.machine
	ctx := context.Background()
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}

	done, err := m.StartVoice(ctx)
	if err != nil {
		t.Fatalf("StartVoice returned error: %v", err)
	}
	if got := m.Snapshot(); got.Status != StatusListening || got.Message != "Listening..." {
		t.Fatalf("unexpected snapshot while listening: %+v", got)
	}
	engine.listener.OnResult("lat pulldown 3 by 12", false)
	engine.listener.OnResult("lat pulldown 3 by 12 at 100", true)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("voice entry returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("voice entry did not complete")
	}
	snap := m.Snapshot()
	if len(snap.Session.Exercises) != 1 || snap.Session.Exercises[0].SourceText != "lat pulldown 3 by 12 at 100" {
		t.Fatalf("unexpected exercises: %+v", snap.Session.Exercises)
	}
}

func TestMachine_StopVoiceDiscardsPendingTranscript(t *testing.T) {
	engine := &mockEngine{supported: true}
	f := newFixture(engine)
	m := f.machine
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	done, err := m.StartVoice(context.Background())
	if err != nil {
		t.Fatalf("StartVoice returned error: %v", err)
	}
	engine.listener.OnResult("half a sentence", false)
	if err := m.StopVoice(); err != nil {
		t.Fatalf("StopVoice returned error: %v", err)
	}
	if err := <-done; !errors.Is(err, speech.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	snap := m.Snapshot()
	if snap.Status != StatusIdle || len(snap.Session.Exercises) != 0 {
		t.Fatalf("stop must discard the transcript: %+v", snap)
	}
}

func TestMachine_VoiceUnsupported(t *testing.T) {
	f := newFixture(&mockEngine{supported: false})
	m := f.machine
	if _, err := m.BeginSession(); err != nil {
		t.Fatalf("BeginSession returned error: %v", err)
	}
	if _, err := m.StartVoice(context.Background()); !errors.Is(err, speech.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if got := m.Snapshot().Status; got != StatusError {
		t.Fatalf("expected error status, got %s", got)
	}
}

func TestProfileWeight(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"180":     "180 lbs",
		" 72.5 ":  "72.5 lbs",
		"80 kg":   "80 kg",
		"unknown": "unknown",
	}
	for in, want := range cases {
		if got := profileWeight(in); got != want {
			t.Fatalf("profileWeight(%q) = %q, want %q", in, got, want)
		}
	}
}
