package app

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/andryanduta/predikta/internal/domain/teamstats"
	"github.com/andryanduta/predikta/internal/usecase"
)

func TestDecodeTeamStatsEntry(t *testing.T) {
	t.Parallel()

	stats := teamstats.Neutral("Liverpool FC", "Premier League", "https://crests.example/64.png")
	raw, err := sonic.Marshal(stats)
	require.NoError(t, err)

	decoded, err := decodeTeamStatsEntry(raw)
	require.NoError(t, err)
	require.Equal(t, stats, decoded)
}

func TestDecodeTeamStatsEntry_StandingsMarker(t *testing.T) {
	t.Parallel()

	raw, err := sonic.Marshal(20)
	require.NoError(t, err)

	decoded, err := decodeTeamStatsEntry(raw)
	require.NoError(t, err)
	require.Equal(t, 20, decoded)
}

func TestDecodeTeamStatsEntry_Garbage(t *testing.T) {
	t.Parallel()

	_, err := decodeTeamStatsEntry([]byte("not json"))
	require.Error(t, err)
}

func TestDecodeFixturesEntry(t *testing.T) {
	t.Parallel()

	fixtures := []usecase.ExternalFixture{
		{
			ExternalID:         101,
			CompetitionCode:    "PL",
			CompetitionName:    "Premier League",
			HomeTeamExternalID: 64,
			HomeTeamName:       "Liverpool FC",
			AwayTeamExternalID: 57,
			AwayTeamName:       "Arsenal FC",
			KickoffAt:          time.Date(2026, 9, 5, 14, 0, 0, 0, time.UTC),
			Status:             "SCHEDULED",
		},
	}
	raw, err := sonic.Marshal(fixtures)
	require.NoError(t, err)

	decoded, err := decodeFixturesEntry(raw)
	require.NoError(t, err)
	require.Equal(t, fixtures, decoded)
}
