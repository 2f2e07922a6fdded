package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-interp/internal/pipeline"
)

// Discord rejects messages over 2000 characters; long transcripts are split
// on line boundaries below that.
const maxMessageLen = 1900

// Presenter delivers pipeline results to the Discord text channel a session
// originated from. It implements pipeline.Presenter.
type Presenter struct {
	s        *discordgo.Session
	resolver *Resolver
}

func NewPresenter(s *discordgo.Session, resolver *Resolver) *Presenter {
	return &Presenter{s: s, resolver: resolver}
}

// Translation posts one live translation as an embed: translated text as
// the description, the original and language pair in fields.
func (p *Presenter) Translation(_ context.Context, origin string, t pipeline.Translation) error {
	speaker := t.Speaker
	if p.resolver != nil {
		if name := p.resolver.DisplayName(t.Speaker); name != "" {
			speaker = name
		}
	}
	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: speaker},
		Description: t.Translated,
		Color:       0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: fmt.Sprintf("%s → %s", t.SourceLang, t.TargetLang), Value: t.Original},
		},
	}
	_, err := p.s.ChannelMessageSendEmbed(origin, embed)
	return err
}

// Transcript posts the speaker-labeled transcript, split across messages on
// line boundaries when it exceeds the platform limit.
func (p *Presenter) Transcript(_ context.Context, origin string, transcript string) error {
	for _, chunk := range splitMessage("📝 **Transcript**\n"+transcript, maxMessageLen) {
		if _, err := p.s.ChannelMessageSend(origin, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Minutes posts the generated meeting minutes.
func (p *Presenter) Minutes(_ context.Context, origin string, minutes string) error {
	for _, chunk := range splitMessage("📋 **Meeting minutes**\n"+minutes, maxMessageLen) {
		if _, err := p.s.ChannelMessageSend(origin, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Notice posts an operational message (degraded results, empty captures).
func (p *Presenter) Notice(_ context.Context, origin string, message string) error {
	_, err := p.s.ChannelMessageSend(origin, message)
	return err
}

// splitMessage breaks text into chunks of at most limit bytes, preferring
// line boundaries. A single line longer than the limit is split mid-line at
// a rune boundary.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			cut := limit
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			if b.Len() > 0 {
				chunks = append(chunks, b.String())
				b.Reset()
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if b.Len() > 0 && b.Len()+len(line)+1 > limit {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
