package synthetic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xaenox/tea-bot/internal/apperr"
	"github.com/xaenox/tea-bot/internal/models"
	"github.com/xaenox/tea-bot/internal/stats"
)

var now = time.Date(2024, 5, 20, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestProviderIsReproducible(t *testing.T) {
	a, err := NewProvider(DefaultSeed, clock).Compute(context.Background(), models.PeriodWeek)
	require.NoError(t, err)
	b, err := NewProvider(DefaultSeed, clock).Compute(context.Background(), models.PeriodWeek)
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := NewProvider(7, clock).Compute(context.Background(), models.PeriodWeek)
	require.NoError(t, err)
	require.NotEqual(t, a.Summary, c.Summary)
}

func TestProviderShape(t *testing.T) {
	tests := []struct {
		period models.Period
		points int
	}{
		{models.PeriodDay, 24},
		{models.PeriodWeek, 7},
		{models.PeriodMonth, 30},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			res, err := NewProvider(DefaultSeed, clock).Compute(context.Background(), tt.period)
			require.NoError(t, err)

			require.Equal(t, tt.period, res.Period)
			require.Len(t, res.ActivityChart.Labels, tt.points)
			require.Len(t, res.ActivityChart.Values, tt.points)
			require.Len(t, res.RecentConversations, 10)
			require.Len(t, res.TopUsers, 5)

			for _, mv := range []models.MetricValue{
				res.Summary.TotalConversations,
				res.Summary.ActiveUsers,
				res.Summary.AvgConversationLength,
				res.Summary.GrowthRate,
			} {
				require.Equal(t, stats.TrendOf(mv.ChangePercent), mv.Trend)
				require.NotEmpty(t, mv.Description)
			}
			for i := 1; i < len(res.TopUsers); i++ {
				require.GreaterOrEqual(t, res.TopUsers[i-1].MessageCount, res.TopUsers[i].MessageCount)
			}
			for i := 1; i < len(res.RecentConversations); i++ {
				require.False(t, res.RecentConversations[i].StartedAt.After(res.RecentConversations[i-1].StartedAt))
			}
		})
	}
}

func TestProviderRejectsUnknownPeriod(t *testing.T) {
	_, err := NewProvider(DefaultSeed, clock).Compute(context.Background(), "year")
	require.Equal(t, apperr.CodeInvalidPeriod, apperr.CodeOf(err))
}

func TestConversations(t *testing.T) {
	entries := Conversations(DefaultSeed, now, 30)
	require.NotEmpty(t, entries)
	require.Zero(t, len(entries)%2)
	require.GreaterOrEqual(t, len(entries), 30*30*2)
	require.LessOrEqual(t, len(entries), 30*100*2)

	from := now.AddDate(0, 0, -30)
	for i := 0; i < len(entries); i += 2 {
		q, a := entries[i], entries[i+1]
		require.Equal(t, models.RoleUser, q.Role)
		require.Equal(t, models.RoleAssistant, a.Role)
		require.Equal(t, q.TelegramID, a.TelegramID)
		require.True(t, a.CreatedAt.After(q.CreatedAt))
		require.False(t, q.CreatedAt.After(now))
		require.True(t, q.CreatedAt.After(from))
	}

	require.Equal(t, entries, Conversations(DefaultSeed, now, 30))
}

func TestWeightedHourRange(t *testing.T) {
	entries := Conversations(1, now, 3)
	for _, e := range entries {
		require.GreaterOrEqual(t, e.CreatedAt.Hour(), 0)
		require.Less(t, e.CreatedAt.Hour(), 24)
	}
}
