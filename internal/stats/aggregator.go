// Package stats computes dashboard statistics over the message log by
// comparing a rolling window against the window right before it.
package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/models"
)

const (
	recentConversationsLimit = 10
	topUsersLimit            = 5
	activeWithin             = time.Hour
	messagesPerConversation  = 10
)

// MessageLog is the query capability the aggregator needs from the log.
// Soft-deleted users and messages are never counted.
type MessageLog interface {
	// CountMessages counts messages created within r.
	CountMessages(ctx context.Context, r models.TimeRange) (int, error)
	// CountConversations counts distinct users with a message within r.
	CountConversations(ctx context.Context, r models.TimeRange) (int, error)
	// CountActiveUsers counts distinct non-deleted users with a message within r.
	CountActiveUsers(ctx context.Context, r models.TimeRange) (int, error)
	// CountUsers counts all non-deleted users.
	CountUsers(ctx context.Context) (int, error)
	// RecentUsers returns users ordered by their latest message, newest first.
	RecentUsers(ctx context.Context, limit int) ([]models.UserActivity, error)
	// TopUsers returns users ordered by message count within r, highest first.
	TopUsers(ctx context.Context, r models.TimeRange, limit int) ([]models.UserActivity, error)
}

// Provider produces a StatsResult for a period.
type Provider interface {
	Compute(ctx context.Context, period models.Period) (*models.StatsResult, error)
}

type Aggregator struct {
	log    MessageLog
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Aggregator)

// WithClock overrides the time source used to place the windows.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func New(log MessageLog, logger *zap.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		log:    log,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// windowCounts holds the raw numbers behind the summary for one window.
type windowCounts struct {
	conversations int
	activeUsers   int
	messages      int
}

func (w windowCounts) avgLength() float64 {
	if w.conversations == 0 {
		return 0
	}
	return float64(w.messages) / float64(w.conversations)
}

// Compute builds the statistics for period as of the aggregator's clock.
func (a *Aggregator) Compute(ctx context.Context, period models.Period) (*models.StatsResult, error) {
	if _, err := models.ParsePeriod(string(period)); err != nil {
		return nil, err
	}

	now := a.now().UTC()
	window := period.Window()
	current := models.TimeRange{From: now.Add(-window), To: now}
	previous := models.TimeRange{From: now.Add(-2 * window), To: current.From}

	summary, err := a.summary(ctx, current, previous)
	if err != nil {
		return nil, err
	}
	chart, err := a.activityChart(ctx, period, now)
	if err != nil {
		return nil, err
	}
	recent, err := a.recentConversations(ctx, now)
	if err != nil {
		return nil, err
	}
	top, err := a.topUsers(ctx, current)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Computed statistics",
		zap.String("period", string(period)),
		zap.Float64("conversations", summary.TotalConversations.Value),
		zap.Float64("active_users", summary.ActiveUsers.Value))

	return &models.StatsResult{
		Period:              period,
		Summary:             summary,
		ActivityChart:       chart,
		RecentConversations: recent,
		TopUsers:            top,
	}, nil
}

func (a *Aggregator) countWindow(ctx context.Context, r models.TimeRange) (windowCounts, error) {
	var w windowCounts
	var err error
	if w.conversations, err = a.log.CountConversations(ctx, r); err != nil {
		return w, fmt.Errorf("stats: count conversations: %w", err)
	}
	if w.activeUsers, err = a.log.CountActiveUsers(ctx, r); err != nil {
		return w, fmt.Errorf("stats: count active users: %w", err)
	}
	if w.messages, err = a.log.CountMessages(ctx, r); err != nil {
		return w, fmt.Errorf("stats: count messages: %w", err)
	}
	return w, nil
}

func (a *Aggregator) summary(ctx context.Context, current, previous models.TimeRange) (models.Summary, error) {
	curr, err := a.countWindow(ctx, current)
	if err != nil {
		return models.Summary{}, err
	}
	prev, err := a.countWindow(ctx, previous)
	if err != nil {
		return models.Summary{}, err
	}
	totalUsers, err := a.log.CountUsers(ctx)
	if err != nil {
		return models.Summary{}, fmt.Errorf("stats: count users: %w", err)
	}

	currGrowth := growthRate(curr.activeUsers, totalUsers)
	prevGrowth := growthRate(prev.activeUsers, totalUsers)

	return models.Summary{
		TotalConversations: NewMetricValue(MetricConversations,
			float64(curr.conversations),
			ChangePercent(float64(curr.conversations), float64(prev.conversations))),
		ActiveUsers: NewMetricValue(MetricUsers,
			float64(curr.activeUsers),
			ChangePercent(float64(curr.activeUsers), float64(prev.activeUsers))),
		AvgConversationLength: NewMetricValue(MetricLength,
			Round1(curr.avgLength()),
			ChangePercent(curr.avgLength(), prev.avgLength())),
		GrowthRate: NewMetricValue(MetricGrowth,
			Round1(currGrowth),
			ChangePercent(currGrowth, prevGrowth)),
	}, nil
}

// growthRate is the share of all known users that were active, in percent.
func growthRate(active, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(active) / float64(total) * 100
}

// buckets returns the chart buckets for period, oldest first. The last bucket
// is the hour or day containing now.
func buckets(period models.Period, now time.Time) ([]models.TimeRange, string) {
	var (
		start  time.Time
		step   time.Duration
		n      int
		layout string
	)
	switch period {
	case models.PeriodDay:
		start, step, n, layout = now.Truncate(time.Hour), time.Hour, 24, "15:00"
	case models.PeriodWeek:
		start, step, n, layout = startOfDay(now), 24*time.Hour, 7, "2006-01-02"
	default:
		start, step, n, layout = startOfDay(now), 24*time.Hour, 30, "2006-01-02"
	}

	out := make([]models.TimeRange, n)
	for i := 0; i < n; i++ {
		from := start.Add(-time.Duration(n-1-i) * step)
		out[i] = models.TimeRange{From: from, To: from.Add(step)}
	}
	return out, layout
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (a *Aggregator) activityChart(ctx context.Context, period models.Period, now time.Time) (models.ActivityChart, error) {
	ranges, layout := buckets(period, now)
	chart := models.ActivityChart{
		Labels: make([]string, 0, len(ranges)),
		Values: make([]float64, 0, len(ranges)),
	}
	for _, r := range ranges {
		count, err := a.log.CountMessages(ctx, r)
		if err != nil {
			return models.ActivityChart{}, fmt.Errorf("stats: count bucket %s: %w", r.From.Format(layout), err)
		}
		chart.Labels = append(chart.Labels, r.From.Format(layout))
		chart.Values = append(chart.Values, float64(count))
	}
	return chart, nil
}

func (a *Aggregator) recentConversations(ctx context.Context, now time.Time) ([]models.RecentConversation, error) {
	users, err := a.log.RecentUsers(ctx, recentConversationsLimit)
	if err != nil {
		return nil, fmt.Errorf("stats: recent users: %w", err)
	}

	out := make([]models.RecentConversation, 0, len(users))
	for _, u := range users {
		status := models.StatusCompleted
		if now.Sub(u.LastMessageAt) < activeWithin {
			status = models.StatusActive
		}
		name := u.Username
		if name == "" {
			name = fmt.Sprintf("User %d", u.TelegramID)
		}
		out = append(out, models.RecentConversation{
			ConversationID: fmt.Sprintf("user_%d", u.TelegramID),
			UserName:       name,
			StartedAt:      u.FirstMessageAt,
			MessageCount:   u.MessageCount,
			Status:         status,
		})
	}
	return out, nil
}

func (a *Aggregator) topUsers(ctx context.Context, current models.TimeRange) ([]models.TopUser, error) {
	users, err := a.log.TopUsers(ctx, current, topUsersLimit)
	if err != nil {
		return nil, fmt.Errorf("stats: top users: %w", err)
	}

	out := make([]models.TopUser, 0, len(users))
	for _, u := range users {
		name := u.Username
		if name == "" {
			name = fmt.Sprintf("user_%d", u.TelegramID)
		}
		out = append(out, models.TopUser{
			Username:          name,
			ConversationCount: max(1, u.MessageCount/messagesPerConversation),
			MessageCount:      u.MessageCount,
			LastActive:        u.LastMessageAt,
		})
	}
	return out, nil
}
