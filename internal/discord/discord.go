package discord

import "context"

type OptionType int

const (
	OptionString OptionType = iota + 1
	OptionNumber
	OptionAttachment
)

type SlashCommandOption struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []SlashCommandOption
}

type Attachment struct {
	ID          string
	Filename    string
	ContentType string
	URL         string
	Size        int
}

type FileAttachment struct {
	Filename string
	Body     []byte
}

// SlashCommandEvent carries one interaction. Long-running handlers call Defer first and
// then EditResponse, which may be called again later while the interaction token is valid.
type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	Strings          map[string]string
	Numbers          map[string]float64
	Attachments      map[string]Attachment
	RespondEphemeral func(content string) error
	Defer            func() error
	EditResponse     func(content string, files ...FileAttachment) error
}

func (e SlashCommandEvent) StringOption(name string) string {
	return e.Strings[name]
}

func (e SlashCommandEvent) NumberOption(name string) (float64, bool) {
	v, ok := e.Numbers[name]
	return v, ok
}

func (e SlashCommandEvent) AttachmentOption(name string) (Attachment, bool) {
	a, ok := e.Attachments[name]
	return a, ok
}

type VoiceStateEvent struct {
	GuildID         string
	UserID          string
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
	GetUserVoiceChannelID(guildID, userID string) (string, error)
	GetBotUserID() (string, error)
	DownloadAttachment(ctx context.Context, a Attachment) ([]byte, error)
	Run() error
}

type VoiceConnection interface {
	Disconnect() error
	ReceiveAudio(callback func(userID string, opus []byte))
}
