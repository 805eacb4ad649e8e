package polls

import (
	"math"

	"github.com/pollbox/backend/internal/models"
)

// BuildResults projects a poll's current tallies into the results view.
// Percentages are rounded to one decimal; a poll with zero votes reports 0
// for every choice. Choices keep their insertion order.
func BuildResults(p *models.Poll) *models.PollResults {
	out := &models.PollResults{
		Poll:       p.Title,
		TotalVotes: p.TotalVotes,
		Results:    make([]models.ChoiceResult, 0, len(p.Choices)),
	}
	for _, ch := range p.Choices {
		pct := 0.0
		if p.TotalVotes > 0 {
			pct = math.Round(float64(ch.VotesCount)/float64(p.TotalVotes)*1000) / 10
		}
		out.Results = append(out.Results, models.ChoiceResult{
			Choice:     ch.Text,
			Votes:      ch.VotesCount,
			Percentage: pct,
		})
	}
	return out
}
