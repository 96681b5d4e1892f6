package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/foxseedlab/gymvoice/internal/audio"
	"github.com/foxseedlab/gymvoice/internal/discord"
	"github.com/foxseedlab/gymvoice/internal/speech"
	"github.com/foxseedlab/gymvoice/internal/transcriber"
)

var (
	ErrNotInVoiceChannel = errors.New("user is not in a voice channel")
	ErrVoiceBusy         = errors.New("voice capture is in use by another member")
)

// voiceLease lets one member at a time hold the bot's voice connection in the guild.
type voiceLease struct {
	mu    sync.Mutex
	owner string
}

func (l *voiceLease) acquire(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" && l.owner != userID {
		return false
	}
	l.owner = userID
	return true
}

func (l *voiceLease) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == userID {
		l.owner = ""
	}
}

// voiceEngine dictates from one member's voice channel audio. Packets from other
// speakers are ignored.
type voiceEngine struct {
	discord    discord.Client
	stt        transcriber.Transcriber
	newDecoder audio.DecoderFactory
	lease      *voiceLease
	guildID    string
	userID     string
	language   string
	enabled    bool

	mu  sync.Mutex
	run *voiceRun
}

type voiceRun struct {
	channelID string
	voice     discord.VoiceConnection
	decoder   audio.Decoder
	writer    transcriber.StreamWriter
	cancel    context.CancelFunc
	listener  speech.Listener

	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (e *voiceEngine) Supported() bool {
	if !e.enabled || e.newDecoder == nil {
		return false
	}
	d, err := e.newDecoder()
	if err != nil {
		return false
	}
	d.Close()
	return true
}

func (e *voiceEngine) Start(ctx context.Context, listener speech.Listener) error {
	channelID, err := e.discord.GetUserVoiceChannelID(e.guildID, e.userID)
	if err != nil {
		return fmt.Errorf("lookup voice channel: %w", err)
	}
	if channelID == "" {
		return ErrNotInVoiceChannel
	}
	if !e.lease.acquire(e.userID) {
		return ErrVoiceBusy
	}

	decoder, err := e.newDecoder()
	if err != nil {
		e.lease.release(e.userID)
		return err
	}
	voice, err := e.discord.JoinVoiceChannel(e.guildID, channelID)
	if err != nil {
		decoder.Close()
		e.lease.release(e.userID)
		return fmt.Errorf("join voice channel: %w", err)
	}
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &voiceRun{
		channelID: channelID,
		voice:     voice,
		decoder:   decoder,
		cancel:    cancel,
		listener:  listener,
	}
	writer, err := e.stt.StartStreaming(streamCtx, e.userID, e.language, &runReceiver{engine: e, run: run})
	if err != nil {
		cancel()
		decoder.Close()
		_ = voice.Disconnect()
		e.lease.release(e.userID)
		return fmt.Errorf("start speech stream: %w", err)
	}
	run.writer = writer

	e.mu.Lock()
	e.run = run
	e.mu.Unlock()

	slog.Info("voice capture started", "guild_id", e.guildID, "channel_id", channelID, "user_id", e.userID)
	go voice.ReceiveAudio(func(userID string, packet []byte) {
		if userID != e.userID {
			return
		}
		e.forward(run, packet)
	})
	return nil
}

func (e *voiceEngine) Stop() error {
	e.mu.Lock()
	run := e.run
	e.run = nil
	e.mu.Unlock()
	if run == nil {
		return nil
	}
	e.teardown(run)
	run.listener.OnEnd()
	return nil
}

// ChannelID returns the voice channel being captured, or "" when idle.
func (e *voiceEngine) ChannelID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return ""
	}
	return e.run.channelID
}

func (e *voiceEngine) forward(run *voiceRun, packet []byte) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.closed {
		return
	}
	pcm, err := run.decoder.Decode(packet)
	if err != nil || len(pcm) == 0 {
		return
	}
	if err := run.writer.Write(pcm); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		slog.Warn("failed to forward voice audio", "error", err, "user_id", e.userID)
	}
}

func (e *voiceEngine) teardown(run *voiceRun) {
	run.once.Do(func() {
		run.mu.Lock()
		run.closed = true
		run.mu.Unlock()

		if err := run.writer.Close(); err != nil {
			slog.Warn("failed to close speech stream", "error", err, "user_id", e.userID)
		}
		run.cancel()
		run.decoder.Close()
		if err := run.voice.Disconnect(); err != nil {
			slog.Warn("failed to leave voice channel", "error", err, "channel_id", run.channelID)
		}
		e.lease.release(e.userID)
		slog.Info("voice capture stopped", "guild_id", e.guildID, "channel_id", run.channelID, "user_id", e.userID)
	})
}

type runReceiver struct {
	engine *voiceEngine
	run    *voiceRun
}

func (r *runReceiver) OnResult(text string, isFinal bool) {
	r.run.listener.OnResult(text, isFinal)
}

func (r *runReceiver) OnError(err error) {
	r.run.listener.OnError(err)
	r.engine.mu.Lock()
	if r.engine.run == r.run {
		r.engine.run = nil
	}
	r.engine.mu.Unlock()
	r.engine.teardown(r.run)
}
