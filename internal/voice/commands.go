package voice

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/pipeline"
	"github.com/discord-voice-interp/internal/prefs"
	"github.com/discord-voice-interp/internal/session"
)

const commandPrefix = "!interp"

// Commands is the plain message-command surface for operating sessions and
// per-user language preferences:
//
//	!interp record          start a capture session
//	!interp translate       start a live translation session
//	!interp stop            stop the active session and finalize
//	!interp lang <src> <tgt> set the caller's language pair
//	!interp lang clear      remove the caller's language pair
type Commands struct {
	Registry   *session.Registry
	Dispatcher *pipeline.Dispatcher
	Transport  *Transport
	Prefs      *prefs.Store

	// VoiceChannelID is the channel joined when a session starts.
	VoiceChannelID string
}

// Register attaches the message handler to the Discord session.
func (c *Commands) Register(ds *discordgo.Session) {
	ds.AddHandler(c.handleMessage)
}

func (c *Commands) handleMessage(ds *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, commandPrefix) {
		return
	}
	args := strings.Fields(strings.TrimPrefix(m.Content, commandPrefix))
	if len(args) == 0 {
		c.reply(ds, m.ChannelID, "Usage: `!interp record | translate | stop | lang <src> <tgt> | lang clear`")
		return
	}
	switch args[0] {
	case "record":
		c.start(ds, m, session.ModeCapturing)
	case "translate":
		c.start(ds, m, session.ModeTranslating)
	case "stop":
		c.stop(ds, m)
	case "lang":
		c.lang(ds, m, args[1:])
	default:
		c.reply(ds, m.ChannelID, "Unknown subcommand. Try `record`, `translate`, `stop`, or `lang`.")
	}
}

func (c *Commands) start(ds *discordgo.Session, m *discordgo.MessageCreate, mode session.Mode) {
	s, err := c.Registry.Start(m.GuildID, m.ChannelID, mode)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyActive) {
			activeMode, _ := c.Registry.ActiveMode(m.GuildID)
			c.reply(ds, m.ChannelID, "A "+activeMode.String()+" session is already running. Stop it first with `!interp stop`.")
			return
		}
		c.reply(ds, m.ChannelID, "Could not start the session.")
		return
	}
	c.Transport.Bind(s)
	if c.VoiceChannelID != "" {
		if err := c.Transport.Join(m.GuildID, c.VoiceChannelID); err != nil {
			logging.Errorw("commands: voice join failed", "guild_id", m.GuildID, "err", err)
			c.Transport.Bind(nil)
			_, _ = c.Dispatcher.StopSession(context.Background(), m.GuildID)
			c.reply(ds, m.ChannelID, "Could not join the voice channel.")
			return
		}
	}
	switch mode {
	case session.ModeCapturing:
		c.reply(ds, m.ChannelID, "🔴 Recording. Stop with `!interp stop` to get the transcript and minutes.")
	case session.ModeTranslating:
		c.reply(ds, m.ChannelID, "🌐 Live translation started. Set your languages with `!interp lang <src> <tgt>`.")
	}
}

func (c *Commands) stop(ds *discordgo.Session, m *discordgo.MessageCreate) {
	c.Transport.Bind(nil)
	c.Transport.Leave()
	mode, ok := c.Dispatcher.StopSession(context.Background(), m.GuildID)
	if !ok {
		c.reply(ds, m.ChannelID, "No session is running.")
		return
	}
	if mode == session.ModeTranslating {
		c.reply(ds, m.ChannelID, "Live translation stopped.")
	}
}

func (c *Commands) lang(ds *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	switch {
	case len(args) == 1 && args[0] == "clear":
		// A persistence failure leaves the in-memory change authoritative
		// for the rest of the process lifetime.
		if err := c.Prefs.Remove(m.Author.ID); err != nil {
			logging.Errorw("commands: prefs remove not persisted", "user_id", m.Author.ID, "err", err)
		}
		c.reply(ds, m.ChannelID, "Your language pair was removed; your speech will no longer be translated.")
	case len(args) == 2:
		src := strings.ToLower(args[0])
		tgt := strings.ToLower(args[1])
		if src == tgt {
			c.reply(ds, m.ChannelID, "Source and target languages must differ.")
			return
		}
		if err := c.Prefs.Set(m.Author.ID, src, tgt); err != nil {
			logging.Errorw("commands: prefs set not persisted", "user_id", m.Author.ID, "err", err)
		}
		c.reply(ds, m.ChannelID, "Got it: your speech will be translated "+src+" → "+tgt+".")
	default:
		c.reply(ds, m.ChannelID, "Usage: `!interp lang <src> <tgt>` or `!interp lang clear`")
	}
}

func (c *Commands) reply(ds *discordgo.Session, channelID, msg string) {
	if _, err := ds.ChannelMessageSend(channelID, msg); err != nil {
		logging.Warnw("commands: reply failed", "channel_id", channelID, "err", err)
	}
}
