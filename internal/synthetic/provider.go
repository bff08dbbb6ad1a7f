// Package synthetic generates plausible statistics and demo conversations
// for dashboards that have no real traffic yet.
package synthetic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/xaenox/tea-bot/internal/models"
	"github.com/xaenox/tea-bot/internal/stats"
)

const DefaultSeed = 42

var phrases = map[stats.Metric]map[models.Trend][]string{
	stats.MetricConversations: {
		models.TrendUp:     {"Trending up this period", "Strong growth in conversations", "Increased user engagement"},
		models.TrendDown:   {"Slightly decreased", "Needs attention", "Lower activity this period"},
		models.TrendStable: {"Stable performance", "Consistent activity", "Maintaining current level"},
	},
	stats.MetricUsers: {
		models.TrendUp:     {"Growing user base", "More active users", "Strong user retention"},
		models.TrendDown:   {"Some users inactive", "User retention declined", "Acquisition needs attention"},
		models.TrendStable: {"Stable user base", "Consistent engagement", "Steady performance"},
	},
	stats.MetricLength: {
		models.TrendUp:     {"Conversations are getting longer", "More detailed discussions", "Increased engagement depth"},
		models.TrendDown:   {"Shorter conversations", "Quick interactions", "Less detailed exchanges"},
		models.TrendStable: {"Consistent conversation depth", "Stable interaction length", "Maintaining quality"},
	},
	stats.MetricGrowth: {
		models.TrendUp:     {"Steady growth", "Accelerating performance", "Meets growth projections"},
		models.TrendDown:   {"Growth slowing down", "Below target", "Needs optimization"},
		models.TrendStable: {"Stable growth rate", "Consistent performance", "On track"},
	},
}

var (
	firstNames = []string{"Alice", "Bob", "Charlie", "David", "Emma", "Frank", "Grace", "Henry", "Ivy", "Jack"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Wilson", "Moore"}
	prefixes   = []string{"user", "dev", "admin", "test", "demo"}
)

// Provider implements stats.Provider with generated numbers. The same seed,
// period and clock always produce the same result.
type Provider struct {
	seed uint64
	now  func() time.Time
}

func NewProvider(seed uint64, now func() time.Time) *Provider {
	if now == nil {
		now = time.Now
	}
	return &Provider{seed: seed, now: now}
}

var _ stats.Provider = (*Provider)(nil)

func (p *Provider) Compute(_ context.Context, period models.Period) (*models.StatsResult, error) {
	if _, err := models.ParsePeriod(string(period)); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(period))
	g := &gen{r: rand.New(rand.NewPCG(p.seed, h.Sum64()))}
	now := p.now().UTC()

	return &models.StatsResult{
		Period:              period,
		Summary:             g.summary(period),
		ActivityChart:       g.chart(period, now),
		RecentConversations: g.recent(now),
		TopUsers:            g.topUsers(now),
	}, nil
}

type gen struct {
	r *rand.Rand
}

func (g *gen) uniform(lo, hi float64) float64 {
	return lo + g.r.Float64()*(hi-lo)
}

func (g *gen) between(lo, hi int) int {
	return lo + g.r.IntN(hi-lo+1)
}

func (g *gen) pick(xs []string) string {
	return xs[g.r.IntN(len(xs))]
}

func (g *gen) metric(m stats.Metric, value, lo, hi float64) models.MetricValue {
	mv := stats.NewMetricValue(m, value, g.uniform(lo, hi))
	mv.Description = g.pick(phrases[m][mv.Trend])
	return mv
}

func (g *gen) summary(period models.Period) models.Summary {
	mult := float64(period.Days())
	return models.Summary{
		TotalConversations:    g.metric(stats.MetricConversations, math.Floor(g.uniform(100, 200)*mult), -5, 20),
		ActiveUsers:           g.metric(stats.MetricUsers, math.Floor(g.uniform(30, 60)*math.Pow(mult, 0.7)), -10, 15),
		AvgConversationLength: g.metric(stats.MetricLength, stats.Round1(g.uniform(6, 12)), -3, 8),
		GrowthRate:            g.metric(stats.MetricGrowth, stats.Round1(g.uniform(2, 8)), -2, 5),
	}
}

func (g *gen) chart(period models.Period, now time.Time) models.ActivityChart {
	var chart models.ActivityChart
	switch period {
	case models.PeriodDay:
		hour := now.Truncate(time.Hour)
		for i := 0; i < 24; i++ {
			chart.Labels = append(chart.Labels, hour.Add(-time.Duration(23-i)*time.Hour).Format("15:00"))
			var v float64
			switch {
			case i < 8:
				v = g.uniform(5, 15)
			case i < 18:
				v = g.uniform(25, 45)
			case i < 23:
				v = g.uniform(35, 55)
			default:
				v = g.uniform(10, 20)
			}
			chart.Values = append(chart.Values, stats.Round1(v))
		}
	case models.PeriodWeek:
		for i := 0; i < 7; i++ {
			chart.Labels = append(chart.Labels, now.AddDate(0, 0, i-6).Format("2006-01-02"))
			v := g.uniform(80, 120)
			if i < 5 {
				v = g.uniform(150, 200)
			}
			chart.Values = append(chart.Values, stats.Round1(v))
		}
	default:
		for i := 0; i < 30; i++ {
			chart.Labels = append(chart.Labels, now.AddDate(0, 0, i-29).Format("2006-01-02"))
			chart.Values = append(chart.Values, stats.Round1(100+float64(i)*2+g.uniform(-20, 30)))
		}
	}
	return chart
}

func (g *gen) recent(now time.Time) []models.RecentConversation {
	out := make([]models.RecentConversation, 0, 10)
	for i := 0; i < 10; i++ {
		started := now.Add(-time.Duration(g.between(0, 24))*time.Hour - time.Duration(g.between(0, 59))*time.Minute)
		status := models.StatusCompleted
		if g.r.Float64() > 0.6 {
			status = models.StatusActive
		}
		out = append(out, models.RecentConversation{
			ConversationID: fmt.Sprintf("conv_%d", g.between(1000, 9999)),
			UserName:       g.pick(firstNames) + " " + g.pick(lastNames),
			StartedAt:      started,
			MessageCount:   g.between(3, 25),
			Status:         status,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (g *gen) topUsers(now time.Time) []models.TopUser {
	out := make([]models.TopUser, 0, 5)
	for i := 0; i < 5; i++ {
		convs := g.between(15, 50) - i*5
		out = append(out, models.TopUser{
			Username:          fmt.Sprintf("%s_%d", g.pick(prefixes), g.between(100, 999)),
			ConversationCount: convs,
			MessageCount:      convs * g.between(8, 15),
			LastActive:        now.Add(-time.Duration(g.between(0, 12))*time.Hour - time.Duration(g.between(0, 59))*time.Minute),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MessageCount > out[j].MessageCount })
	return out
}
