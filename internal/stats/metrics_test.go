package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xaenox/tea-bot/internal/models"
)

func TestChangePercent(t *testing.T) {
	tests := []struct {
		name       string
		curr, prev float64
		want       float64
	}{
		{"appears from zero", 10, 0, 100},
		{"nothing either side", 0, 0, 0},
		{"increase", 120, 100, 20},
		{"halved", 50, 100, -50},
		{"drops to zero", 0, 40, -100},
		{"unchanged", 7, 7, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, ChangePercent(tt.curr, tt.prev), 1e-9)
		})
	}
}

func TestRound1(t *testing.T) {
	require.Equal(t, 33.3, Round1(100.0/3))
	require.Equal(t, 0.3, Round1(0.25))
	require.Equal(t, -0.3, Round1(-0.25))
	require.Equal(t, 5.0, Round1(5))
}

func TestTrendOf(t *testing.T) {
	tests := []struct {
		change float64
		want   models.Trend
	}{
		{2.0, models.TrendStable},
		{2.01, models.TrendUp},
		{-2.0, models.TrendStable},
		{-2.01, models.TrendDown},
		{0, models.TrendStable},
		{100, models.TrendUp},
		{-100, models.TrendDown},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, TrendOf(tt.change), "change %v", tt.change)
	}
}

func TestDescribeIsDeterministic(t *testing.T) {
	for _, m := range []Metric{MetricConversations, MetricUsers, MetricLength, MetricGrowth} {
		for _, tr := range []models.Trend{models.TrendUp, models.TrendDown, models.TrendStable} {
			d := Describe(m, tr)
			require.NotEmpty(t, d, "%s/%s", m, tr)
			require.Equal(t, d, Describe(m, tr))
		}
	}
	require.Equal(t, "Growing user base", Describe(MetricUsers, models.TrendUp))
}

func TestNewMetricValueTrendFollowsRoundedChange(t *testing.T) {
	// 2.04 rounds to 2.0, which is not above the threshold.
	mv := NewMetricValue(MetricConversations, 10, 2.04)
	require.Equal(t, 2.0, mv.ChangePercent)
	require.Equal(t, models.TrendStable, mv.Trend)
	require.Equal(t, "Stable performance", mv.Description)

	mv = NewMetricValue(MetricConversations, 10, 2.06)
	require.Equal(t, 2.1, mv.ChangePercent)
	require.Equal(t, models.TrendUp, mv.Trend)
}
