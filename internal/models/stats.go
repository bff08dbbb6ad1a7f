package models

import (
	"fmt"
	"time"

	"github.com/xaenox/tea-bot/internal/apperr"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name received from a client.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", apperr.New(apperr.CodeInvalidPeriod,
			fmt.Sprintf("invalid period %q: must be 'day', 'week' or 'month'", s), nil)
	}
}

// Window is the length of one comparison window for the period.
func (p Period) Window() time.Duration {
	switch p {
	case PeriodDay:
		return 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Days is the window length in whole days.
func (p Period) Days() int {
	return int(p.Window() / (24 * time.Hour))
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type MetricValue struct {
	Value         float64 `json:"value"`
	ChangePercent float64 `json:"change_percent"`
	Trend         Trend   `json:"trend"`
	Description   string  `json:"description"`
}

type Summary struct {
	TotalConversations    MetricValue `json:"total_conversations"`
	ActiveUsers           MetricValue `json:"active_users"`
	AvgConversationLength MetricValue `json:"avg_conversation_length"`
	GrowthRate            MetricValue `json:"growth_rate"`
}

// ActivityChart holds parallel label/value series of equal length.
type ActivityChart struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type ConversationStatus string

const (
	StatusActive    ConversationStatus = "active"
	StatusCompleted ConversationStatus = "completed"
)

type RecentConversation struct {
	ConversationID string             `json:"conversation_id"`
	UserName       string             `json:"user_name"`
	StartedAt      time.Time          `json:"started_at"`
	MessageCount   int                `json:"message_count"`
	Status         ConversationStatus `json:"status"`
}

type TopUser struct {
	Username          string    `json:"username"`
	ConversationCount int       `json:"conversation_count"`
	MessageCount      int       `json:"message_count"`
	LastActive        time.Time `json:"last_active"`
}

// StatsResult is a read model computed per request from the message log.
type StatsResult struct {
	Period              Period               `json:"period"`
	Summary             Summary              `json:"summary"`
	ActivityChart       ActivityChart        `json:"activity_chart"`
	RecentConversations []RecentConversation `json:"recent_conversations"`
	TopUsers            []TopUser            `json:"top_users"`
}
