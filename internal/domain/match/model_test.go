package match

import (
	"testing"
	"time"

	"github.com/andryanduta/predikta/internal/domain/teamstats"
)

func TestComposeID(t *testing.T) {
	t.Parallel()

	if got := ComposeID("PL", 101); got != "PL-101" {
		t.Fatalf("ComposeID = %q", got)
	}
	if got := ComposeID(" PD ", 101); got != "PD-101" {
		t.Fatalf("ComposeID trims code, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2026, 9, 5, 14, 0, 0, 0, time.UTC)
	valid := Match{
		ID:        "PL-101",
		HomeTeam:  teamstats.Neutral("Liverpool FC", "Premier League", ""),
		AwayTeam:  teamstats.Neutral("Arsenal FC", "Premier League", ""),
		KickoffAt: kickoff,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid match rejected: %v", err)
	}

	noID := valid
	noID.ID = " "
	if err := noID.Validate(); err == nil {
		t.Fatal("expected error for blank id")
	}

	noKickoff := valid
	noKickoff.KickoffAt = time.Time{}
	if err := noKickoff.Validate(); err == nil {
		t.Fatal("expected error for zero kickoff")
	}

	sameTeams := valid
	sameTeams.AwayTeam = sameTeams.HomeTeam
	if err := sameTeams.Validate(); err == nil {
		t.Fatal("expected error for identical teams")
	}
}
