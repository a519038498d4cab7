// Package report renders incident summary embeds and transcript archives.
package report

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/Mayerch1/IncidentBot/internal/storage"
)

// Embeds renders incident summary cards.
type Embeds struct{}

// IncidentSummary builds the summary card shown in the incident channel and
// published to the summary channel on close.
func (Embeds) IncidentSummary(inc *storage.Incident, title string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: inc.RaceName,
	}

	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{
			Name:   "Victim",
			Value:  fmt.Sprintf("%s - %d", inc.Victim.Name, inc.Victim.Number),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   "Offender",
			Value:  fmt.Sprintf("%s - %d", inc.Offender.Name, inc.Offender.Number),
			Inline: true,
		},
	)

	if inc.LapCorner != "" && inc.LapCorner != "-" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Lap/Corner",
			Value: inc.LapCorner,
		})
	}

	if inc.Infringement != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Infringement",
			Value:  inc.Infringement,
			Inline: true,
		})
	}

	if inc.Outcome != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Outcome",
			Value:  inc.Outcome,
			Inline: true,
		})
	}

	return embed
}
