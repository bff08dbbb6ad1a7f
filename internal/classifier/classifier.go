// Package classifier answers admin questions about bot usage by matching
// keywords to a statistics view and rendering it as text.
package classifier

import (
	"strings"

	"github.com/xaenox/tea-bot/internal/models"
)

// View is the statistics report an admin query asks for.
type View string

const (
	ViewNone          View = ""
	ViewConversations View = "conversations"
	ViewUsers         View = "users"
	ViewSummary       View = "summary"
	ViewActivity      View = "activity"
)

type rule struct {
	view     View
	keywords []string
}

// viewRules are checked in order and the first rule with a matching keyword
// wins, so "active users" never reaches the activity view.
var viewRules = []rule{
	{ViewConversations, []string{"диалог", "conversation", "всего", "total", "количество"}},
	{ViewUsers, []string{"пользовател", "user", "активн", "active"}},
	{ViewSummary, []string{"статистик", "statistic", "метрик", "metric", "данн", "data"}},
	{ViewActivity, []string{"график", "chart", "активность", "activity", "динамик"}},
}

var periodRules = []struct {
	period   models.Period
	keywords []string
}{
	{models.PeriodDay, []string{"день", "сегодня", "day", "today", "24"}},
	{models.PeriodMonth, []string{"месяц", "month", "30"}},
}

// Classify maps a free-form query to a view and a period. Matching is by
// lower-cased substring. Unmatched queries yield ViewNone; the period falls
// back to a week.
func Classify(query string) (View, models.Period) {
	q := strings.ToLower(query)
	return detectView(q), detectPeriod(q)
}

func detectView(q string) View {
	for _, r := range viewRules {
		if containsAny(q, r.keywords) {
			return r.view
		}
	}
	return ViewNone
}

func detectPeriod(q string) models.Period {
	for _, r := range periodRules {
		if containsAny(q, r.keywords) {
			return r.period
		}
	}
	return models.PeriodWeek
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
