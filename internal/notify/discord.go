package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/internal/summary/entity"
)

// TicksPerSecond is the Minecraft server tick rate.
const TicksPerSecond = 20

// placementsShown is how many top places the embed lists.
const placementsShown = 3

// Webhook is the Discord channel webhook published games are announced on.
type Webhook struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// DiscordNotifier posts an embed to a channel webhook for every publish.
type DiscordNotifier struct {
	hook    Webhook
	session *discordgo.Session
	logger  *zap.SugaredLogger
}

func NewDiscordNotifier(hook Webhook, logger *zap.SugaredLogger) (*DiscordNotifier, error) {
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &DiscordNotifier{hook: hook, session: s, logger: logger}, nil
}

func (n *DiscordNotifier) SummaryPublished(ctx context.Context, season int, s entity.ClientSummary) error {
	_, err := n.session.WebhookExecute(n.hook.ID, n.hook.Token, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{Embed(season, s)},
	})
	if err != nil {
		return fmt.Errorf("webhook execute: %w", err)
	}
	n.logger.Debugw("publish announced", "season", season, "game", s.ID)
	return nil
}

// Embed builds the announcement for a published game.
func Embed(season int, s entity.ClientSummary) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s Season %d Game %s", s.GameType, season, s.ID),
		Description: "Lasted " + Duration(s.GameLength),
		Color:       0xFF9900,
		Timestamp:   s.Date.Format(time.RFC3339),
	}
	var top []string
	for _, p := range s.Players {
		if p.Place <= placementsShown {
			top = append(top, fmt.Sprintf("%d. %s", p.Place, p.Name))
		}
	}
	if len(top) > 0 {
		e.Fields = []*discordgo.MessageEmbedField{{Name: "Placements", Value: strings.Join(top, "\n")}}
	}
	return e
}

// Duration renders a tick count as minutes and seconds.
func Duration(ticks int64) string {
	total := ticks / TicksPerSecond
	minutes, seconds := total/60, total%60
	parts := []string{}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || minutes == 0 {
		parts = append(parts, plural(seconds, "second"))
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) SummaryPublished(context.Context, int, entity.ClientSummary) error { return nil }
