package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/andryanduta/predikta/internal/domain/teamstats"
)

// Match is one upcoming scheduled game with both teams' statistics
// already resolved. Produced per aggregation cycle; never persisted beyond
// the underlying fixture-list cache entry.
type Match struct {
	ID          string                    `json:"id"`
	Competition string                    `json:"competition"`
	HomeTeam    teamstats.TeamStatistics  `json:"homeTeam"`
	AwayTeam    teamstats.TeamStatistics  `json:"awayTeam"`
	KickoffAt   time.Time                 `json:"kickoffAt"`
	Venue       string                    `json:"venue,omitempty"`
}

// ComposeID namespaces a provider fixture id with its competition code.
// Raw provider ids are only unique within a competition, so the composite
// form is required to avoid cross-competition collisions.
func ComposeID(competitionCode string, providerFixtureID int64) string {
	return fmt.Sprintf("%s-%d", strings.TrimSpace(competitionCode), providerFixtureID)
}

func (m Match) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("match id is required")
	}
	if m.KickoffAt.IsZero() {
		return fmt.Errorf("match kickoff time is required")
	}
	if strings.EqualFold(strings.TrimSpace(m.HomeTeam.Name), strings.TrimSpace(m.AwayTeam.Name)) {
		return fmt.Errorf("home and away teams must be distinct")
	}
	return nil
}
