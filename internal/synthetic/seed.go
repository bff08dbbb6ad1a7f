package synthetic

import (
	"math/rand/v2"
	"time"

	"github.com/xaenox/tea-bot/internal/models"
)

// DemoUser is a Telegram identity used by the demo data set.
type DemoUser struct {
	TelegramID int64
	Username   string
}

var DemoUsers = []DemoUser{
	{100001, "alice_dev"},
	{100002, "bob_tester"},
	{100003, "charlie_user"},
	{100004, "diana_admin"},
	{100005, "eve_customer"},
	{100006, "frank_support"},
	{100007, "grace_team"},
	{100008, "henry_qa"},
	{100009, "ivy_manager"},
	{100010, "jack_engineer"},
}

var userPrompts = []string{
	"Hello! How can I use this bot?",
	"What features are available?",
	"Can you help me with something?",
	"Show me statistics",
	"Tell me about your capabilities",
	"How do I get started?",
	"How long will this migration take?",
	"Help me understand this feature",
	"Can you explain how this works?",
	"I need assistance with a task",
}

var assistantReplies = []string{
	"I'd be happy to help! Let me explain...",
	"Sure! Here's what you need to know...",
	"Great question! The answer is...",
	"Let me show you how that works...",
	"I can definitely assist you with that...",
	"Here's the information you requested...",
	"That's a common question. Here's the answer...",
	"I understand. Let me clarify...",
	"Perfect! Here's what I recommend...",
	"Absolutely! Let me walk you through this...",
}

// Conversations generates days of demo exchanges ending on the day of now.
// Weekdays get 50 to 100 exchanges, weekends 30 to 80, and daytime hours are
// twice as likely as night hours. Entries are returned in chronological order
// per day; each exchange is a user entry followed by the assistant reply a few
// seconds later.
func Conversations(seed uint64, now time.Time, days int) []models.LogEntry {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	now = now.UTC()

	var out []models.LogEntry
	for offset := days - 1; offset >= 0; offset-- {
		day := now.AddDate(0, 0, -offset)
		base := 50
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			base = 30
		}
		n := base + r.IntN(51)

		for i := 0; i < n; i++ {
			u := DemoUsers[r.IntN(len(DemoUsers))]
			at := time.Date(day.Year(), day.Month(), day.Day(),
				weightedHour(r), r.IntN(60), r.IntN(60), 0, time.UTC)
			if at.After(now) {
				at = now.Add(-time.Duration(r.IntN(3600)) * time.Second)
			}
			reply := at.Add(time.Duration(2+r.IntN(9)) * time.Second)

			out = append(out,
				models.LogEntry{
					TelegramID: u.TelegramID,
					Username:   u.Username,
					Role:       models.RoleUser,
					Content:    userPrompts[r.IntN(len(userPrompts))],
					CreatedAt:  at,
				},
				models.LogEntry{
					TelegramID: u.TelegramID,
					Username:   u.Username,
					Role:       models.RoleAssistant,
					Content:    assistantReplies[r.IntN(len(assistantReplies))],
					CreatedAt:  reply,
				})
		}
	}
	return out
}

// weightedHour draws an hour of the day where 08:00-21:59 weighs 2 and the rest 1.
func weightedHour(r *rand.Rand) int {
	// 14 day hours * 2 + 10 night hours * 1
	n := r.IntN(38)
	if n < 28 {
		return 8 + n/2
	}
	n -= 28
	if n < 8 {
		return n
	}
	return 22 + (n - 8)
}
