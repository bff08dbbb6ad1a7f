package classifier

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/models"
	"github.com/xaenox/tea-bot/internal/stats"
)

const HelpText = `Admin mode

I can answer questions about bot usage:

• Number of conversations (per day, week or month)
• Active users
• Overall statistics
• Activity over time

Example queries:
• "How many conversations were there this week?"
• "Show active users"
• "Overall statistics for the month"
• "Activity chart for today"`

const activityPoints = 5

var periodNames = map[models.Period]string{
	models.PeriodDay:   "the last 24 hours",
	models.PeriodWeek:  "the last week",
	models.PeriodMonth: "the last month",
}

var funcs = template.FuncMap{
	"signed": func(v float64) string { return fmt.Sprintf("%+.1f%%", v) },
	"int":    func(v float64) int { return int(v) },
	"f1":     func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"inc":    func(i int) int { return i + 1 },
	"trendWord": func(t models.Trend) string {
		switch t {
		case models.TrendUp:
			return "increase"
		case models.TrendDown:
			return "decrease"
		default:
			return "stable"
		}
	},
}

var reports = template.Must(template.New("reports").Funcs(funcs).Parse(`
{{- define "conversations" -}}
Conversations for {{.PeriodName}}:

Total conversations: {{int .Summary.TotalConversations.Value}}
Change: {{signed .Summary.TotalConversations.ChangePercent}} ({{trendWord .Summary.TotalConversations.Trend}})
{{- end}}

{{- define "users" -}}
Active users for {{.PeriodName}}:

Count: {{int .Summary.ActiveUsers.Value}}
Change: {{signed .Summary.ActiveUsers.ChangePercent}}
{{- if .TopUsers}}

Top {{len .TopUsers}} users:
{{- range $i, $u := .TopUsers}}
{{inc $i}}. @{{$u.Username}} - {{$u.ConversationCount}} conversations, {{$u.MessageCount}} messages
{{- end}}
{{- end}}
{{- end}}

{{- define "summary" -}}
Overall statistics for {{.PeriodName}}:

Conversations: {{int .Summary.TotalConversations.Value}} ({{signed .Summary.TotalConversations.ChangePercent}})
Users: {{int .Summary.ActiveUsers.Value}} ({{signed .Summary.ActiveUsers.ChangePercent}})
Average conversation length: {{f1 .Summary.AvgConversationLength.Value}} messages ({{signed .Summary.AvgConversationLength.ChangePercent}})
Growth rate: {{f1 .Summary.GrowthRate.Value}}% ({{signed .Summary.GrowthRate.ChangePercent}})
{{- end}}

{{- define "activity" -}}
Activity for {{.PeriodName}}:

Latest data:
{{- range .Points}}
• {{.Label}}: {{int .Value}} messages
{{- end}}

Average activity: {{f1 .Average}} messages
{{- end}}
`))

type point struct {
	Label string
	Value float64
}

// report is the data every view template renders from.
type report struct {
	PeriodName string
	Summary    models.Summary
	TopUsers   []models.TopUser
	Points     []point
	Average    float64
}

// Admin answers admin-mode queries from a statistics provider.
type Admin struct {
	provider stats.Provider
	tmpl     *template.Template
	logger   *zap.Logger
}

func NewAdmin(provider stats.Provider, logger *zap.Logger) *Admin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Admin{
		provider: provider,
		tmpl:     reports,
		logger:   logger,
	}
}

// Answer classifies query and renders the matching report. History is
// accepted for parity with the model backend and is not consulted.
func (a *Admin) Answer(ctx context.Context, query string, _ []models.Turn) (string, error) {
	view, period := Classify(query)
	if view == ViewNone {
		return HelpText, nil
	}

	a.logger.Info("Processing admin query",
		zap.String("view", string(view)),
		zap.String("period", string(period)))

	res, err := a.provider.Compute(ctx, period)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := a.tmpl.ExecuteTemplate(&buf, string(view), newReport(res)); err != nil {
		a.logger.Error("Failed to render admin report",
			zap.String("view", string(view)),
			zap.Error(err))
		return HelpText, nil
	}
	return buf.String(), nil
}

func newReport(res *models.StatsResult) report {
	r := report{
		PeriodName: periodNames[res.Period],
		Summary:    res.Summary,
		TopUsers:   res.TopUsers,
	}
	if len(r.TopUsers) > 5 {
		r.TopUsers = r.TopUsers[:5]
	}

	labels, values := res.ActivityChart.Labels, res.ActivityChart.Values
	n := min(len(labels), len(values))
	start := max(0, n-activityPoints)
	var sum float64
	for i := start; i < n; i++ {
		r.Points = append(r.Points, point{Label: labels[i], Value: values[i]})
		sum += values[i]
	}
	if len(r.Points) > 0 {
		r.Average = sum / float64(len(r.Points))
	}
	return r
}
