package stats

import (
	"math"

	"github.com/xaenox/tea-bot/internal/models"
)

// Metric names the summary metric a description is chosen for.
type Metric string

const (
	MetricConversations Metric = "conversations"
	MetricUsers         Metric = "users"
	MetricLength        Metric = "length"
	MetricGrowth        Metric = "growth"
)

// trendThreshold is the change, in percent, above which a metric trends.
const trendThreshold = 2.0

// ChangePercent compares curr against prev. A metric appearing from zero
// counts as a 100% increase.
func ChangePercent(curr, prev float64) float64 {
	if prev == 0 {
		if curr > 0 {
			return 100.0
		}
		return 0.0
	}
	return (curr - prev) / prev * 100
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func TrendOf(changePercent float64) models.Trend {
	switch {
	case changePercent > trendThreshold:
		return models.TrendUp
	case changePercent < -trendThreshold:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

var descriptions = map[Metric]map[models.Trend]string{
	MetricConversations: {
		models.TrendUp:     "Trending up this period",
		models.TrendDown:   "Slightly decreased",
		models.TrendStable: "Stable performance",
	},
	MetricUsers: {
		models.TrendUp:     "Growing user base",
		models.TrendDown:   "Some users inactive",
		models.TrendStable: "Stable user base",
	},
	MetricLength: {
		models.TrendUp:     "Conversations are getting longer",
		models.TrendDown:   "Shorter conversations",
		models.TrendStable: "Consistent conversation depth",
	},
	MetricGrowth: {
		models.TrendUp:     "Steady growth",
		models.TrendDown:   "Growth slowing down",
		models.TrendStable: "Stable growth rate",
	},
}

// Describe returns the fixed phrase for a metric moving in the given direction.
func Describe(metric Metric, trend models.Trend) string {
	return descriptions[metric][trend]
}

// NewMetricValue builds a MetricValue whose trend and description are derived
// from the rounded change, so they always agree with the reported number.
func NewMetricValue(metric Metric, value, changePercent float64) models.MetricValue {
	change := Round1(changePercent)
	trend := TrendOf(change)
	return models.MetricValue{
		Value:         value,
		ChangePercent: change,
		Trend:         trend,
		Description:   Describe(metric, trend),
	}
}
