package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"foerderscout/internal/model"
)

const (
	searchScoreThreshold = 0.3
	searchOverfetch      = 5
)

// GrantMatch is a grant with its raw similarity and ranked match score.
type GrantMatch struct {
	Grant      model.Grant `json:"grant"`
	Similarity float64     `json:"similarity"`
	MatchScore float64     `json:"match_score"`
}

// BuildQueryText joins the search inputs into the text that gets embedded.
func BuildQueryText(in GrantSearchInput) string {
	parts := make([]string, 0, 5)
	if d := strings.TrimSpace(in.ProjectDescription); d != "" {
		parts = append(parts, d)
	}
	if ind := strings.TrimSpace(in.Industry); ind != "" {
		parts = append(parts, "Branche: "+ind)
	}
	if in.CompanySize != nil && *in.CompanySize > 0 {
		parts = append(parts, fmt.Sprintf("Unternehmensgröße: %d Mitarbeiter", *in.CompanySize))
	}
	if in.Budget != nil && *in.Budget > 0 {
		parts = append(parts, "Budget: "+strconv.FormatFloat(*in.Budget, 'f', -1, 64)+" EUR")
	}
	if loc := strings.TrimSpace(in.Location); loc != "" {
		parts = append(parts, "Standort: "+loc)
	}
	return strings.Join(parts, " ")
}

// filterMatches drops grants whose maximum funding is below the project budget
// and grants whose deadline has passed.
func filterMatches(matches []GrantMatch, budget *float64, now time.Time) []GrantMatch {
	out := matches[:0]
	for _, m := range matches {
		if budget != nil && *budget > 0 && m.Grant.MaxFunding > 0 && *budget > m.Grant.MaxFunding {
			continue
		}
		if m.Grant.Expired(now) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// rankMatches boosts similarity by historical success rate and deadline
// urgency, then sorts descending.
func rankMatches(matches []GrantMatch, now time.Time) {
	for i := range matches {
		m := &matches[i]
		score := m.Similarity
		if rate := m.Grant.HistoricalSuccessRate; rate != nil {
			score *= 1 + *rate*0.5
		}
		if !m.Grant.IsContinuous && m.Grant.Deadline != nil {
			days := int(m.Grant.Deadline.Sub(now).Hours() / 24)
			switch {
			case days < 30:
				score *= 1.2
			case days < 60:
				score *= 1.1
			}
		}
		m.MatchScore = score
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
}
