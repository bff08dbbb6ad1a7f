package stats

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/apperr"
	"github.com/xaenox/tea-bot/internal/models"
)

type event struct {
	tgID     int64
	username string
	at       time.Time
}

// fakeLog answers MessageLog queries by scanning a slice of events.
type fakeLog struct {
	events []event
	users  int
	err    error
	ctxs   []context.Context
}

func (f *fakeLog) in(ctx context.Context, r models.TimeRange) []event {
	f.ctxs = append(f.ctxs, ctx)
	var out []event
	for _, e := range f.events {
		if r.Contains(e.at) {
			out = append(out, e)
		}
	}
	return out
}

func distinct(events []event) int {
	seen := map[int64]bool{}
	for _, e := range events {
		seen[e.tgID] = true
	}
	return len(seen)
}

func (f *fakeLog) CountMessages(ctx context.Context, r models.TimeRange) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.in(ctx, r)), nil
}

func (f *fakeLog) CountConversations(ctx context.Context, r models.TimeRange) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return distinct(f.in(ctx, r)), nil
}

func (f *fakeLog) CountActiveUsers(ctx context.Context, r models.TimeRange) (int, error) {
	return f.CountConversations(ctx, r)
}

func (f *fakeLog) CountUsers(ctx context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.users > 0 {
		return f.users, nil
	}
	return distinct(f.events), nil
}

func (f *fakeLog) activity(events []event) []models.UserActivity {
	byUser := map[int64]*models.UserActivity{}
	for _, e := range events {
		a, ok := byUser[e.tgID]
		if !ok {
			a = &models.UserActivity{TelegramID: e.tgID, Username: e.username, FirstMessageAt: e.at, LastMessageAt: e.at}
			byUser[e.tgID] = a
		}
		a.MessageCount++
		if e.at.Before(a.FirstMessageAt) {
			a.FirstMessageAt = e.at
		}
		if e.at.After(a.LastMessageAt) {
			a.LastMessageAt = e.at
		}
	}
	out := make([]models.UserActivity, 0, len(byUser))
	for _, a := range byUser {
		out = append(out, *a)
	}
	return out
}

func (f *fakeLog) RecentUsers(ctx context.Context, limit int) ([]models.UserActivity, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.activity(f.events)
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLog) TopUsers(ctx context.Context, r models.TimeRange, limit int) ([]models.UserActivity, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.activity(f.in(ctx, r))
	sort.Slice(out, func(i, j int) bool { return out[i].MessageCount > out[j].MessageCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var fixedNow = time.Date(2024, 5, 20, 15, 30, 0, 0, time.UTC)

func newAggregator(log MessageLog) *Aggregator {
	return New(log, zap.NewNop(), WithClock(func() time.Time { return fixedNow }))
}

func repeat(tgID int64, name string, n int, at time.Time) []event {
	out := make([]event, n)
	for i := range out {
		out[i] = event{tgID: tgID, username: name, at: at.Add(-time.Duration(i) * time.Minute)}
	}
	return out
}

func TestCompute_NewUsersInCurrentWindow(t *testing.T) {
	var events []event
	events = append(events, repeat(1, "alice", 10, fixedNow.Add(-2*time.Hour))...)
	events = append(events, repeat(2, "", 5, fixedNow.Add(-30*time.Minute))...)
	log := &fakeLog{events: events}

	res, err := newAggregator(log).Compute(context.Background(), models.PeriodDay)
	require.NoError(t, err)

	require.Equal(t, models.PeriodDay, res.Period)
	au := res.Summary.ActiveUsers
	require.Equal(t, 2.0, au.Value)
	require.Equal(t, 100.0, au.ChangePercent)
	require.Equal(t, models.TrendUp, au.Trend)
	require.Equal(t, "Growing user base", au.Description)

	require.Equal(t, 2.0, res.Summary.TotalConversations.Value)
	require.Equal(t, 7.5, res.Summary.AvgConversationLength.Value)
	require.Equal(t, 100.0, res.Summary.GrowthRate.Value)

	require.Len(t, res.TopUsers, 2)
	require.Equal(t, "alice", res.TopUsers[0].Username)
	require.Equal(t, 10, res.TopUsers[0].MessageCount)
	require.Equal(t, 1, res.TopUsers[0].ConversationCount)
	require.Equal(t, "user_2", res.TopUsers[1].Username)

	require.Len(t, res.RecentConversations, 2)
	first := res.RecentConversations[0]
	require.Equal(t, "user_2", first.ConversationID)
	require.Equal(t, "User 2", first.UserName)
	require.Equal(t, models.StatusActive, first.Status)
	require.Equal(t, models.StatusCompleted, res.RecentConversations[1].Status)
}

func TestCompute_ComparesAgainstPreviousWindow(t *testing.T) {
	var events []event
	events = append(events, repeat(1, "a", 4, fixedNow.Add(-time.Hour))...)
	events = append(events, repeat(2, "b", 4, fixedNow.Add(-36*time.Hour))...)
	events = append(events, repeat(3, "c", 4, fixedNow.Add(-40*time.Hour))...)
	log := &fakeLog{events: events}

	res, err := newAggregator(log).Compute(context.Background(), models.PeriodDay)
	require.NoError(t, err)

	tc := res.Summary.TotalConversations
	require.Equal(t, 1.0, tc.Value)
	require.Equal(t, -50.0, tc.ChangePercent)
	require.Equal(t, models.TrendDown, tc.Trend)

	al := res.Summary.AvgConversationLength
	require.Equal(t, 4.0, al.Value)
	require.Equal(t, 0.0, al.ChangePercent)
	require.Equal(t, models.TrendStable, al.Trend)

	// one of three users active now against two of three before
	gr := res.Summary.GrowthRate
	require.Equal(t, 33.3, gr.Value)
	require.Equal(t, -50.0, gr.ChangePercent)
}

func TestCompute_EmptyLog(t *testing.T) {
	res, err := newAggregator(&fakeLog{}).Compute(context.Background(), models.PeriodWeek)
	require.NoError(t, err)

	for _, mv := range []models.MetricValue{
		res.Summary.TotalConversations,
		res.Summary.ActiveUsers,
		res.Summary.AvgConversationLength,
		res.Summary.GrowthRate,
	} {
		require.Equal(t, 0.0, mv.Value)
		require.Equal(t, 0.0, mv.ChangePercent)
		require.Equal(t, models.TrendStable, mv.Trend)
	}
	require.Empty(t, res.RecentConversations)
	require.Empty(t, res.TopUsers)
}

func TestCompute_ActivityChartShape(t *testing.T) {
	tests := []struct {
		period    models.Period
		n         int
		lastLabel string
	}{
		{models.PeriodDay, 24, "15:00"},
		{models.PeriodWeek, 7, "2024-05-20"},
		{models.PeriodMonth, 30, "2024-05-20"},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			res, err := newAggregator(&fakeLog{}).Compute(context.Background(), tt.period)
			require.NoError(t, err)
			chart := res.ActivityChart
			require.Len(t, chart.Labels, tt.n)
			require.Len(t, chart.Values, tt.n)
			require.Equal(t, tt.lastLabel, chart.Labels[tt.n-1])
		})
	}
}

func TestCompute_ActivityChartCounts(t *testing.T) {
	log := &fakeLog{events: []event{
		{tgID: 1, at: fixedNow.Add(-5 * time.Minute)},
		{tgID: 1, at: fixedNow.Add(-10 * time.Minute)},
		{tgID: 2, at: fixedNow.Add(-65 * time.Minute)},
	}}
	res, err := newAggregator(log).Compute(context.Background(), models.PeriodDay)
	require.NoError(t, err)

	values := res.ActivityChart.Values
	require.Equal(t, 2.0, values[23])
	require.Equal(t, 1.0, values[22])
	require.Equal(t, "14:00", res.ActivityChart.Labels[22])
}

func TestCompute_InvalidPeriod(t *testing.T) {
	_, err := newAggregator(&fakeLog{}).Compute(context.Background(), models.Period("year"))
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidPeriod, apperr.CodeOf(err))
	require.True(t, apperr.IsClientInput(err))
}

func TestCompute_PropagatesLogErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := newAggregator(&fakeLog{err: boom}).Compute(context.Background(), models.PeriodDay)
	require.ErrorIs(t, err, boom)
}

func TestCompute_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "req")
	log := &fakeLog{}
	_, err := newAggregator(log).Compute(ctx, models.PeriodDay)
	require.NoError(t, err)
	require.NotEmpty(t, log.ctxs)
	for _, c := range log.ctxs {
		require.Equal(t, "req", c.Value(key{}))
	}
}

func TestCompute_TrendAgreesWithChange(t *testing.T) {
	log := &fakeLog{events: repeat(1, "a", 3, fixedNow.Add(-time.Hour))}
	for _, p := range []models.Period{models.PeriodDay, models.PeriodWeek, models.PeriodMonth} {
		res, err := newAggregator(log).Compute(context.Background(), p)
		require.NoError(t, err)
		for _, mv := range []models.MetricValue{
			res.Summary.TotalConversations,
			res.Summary.ActiveUsers,
			res.Summary.AvgConversationLength,
			res.Summary.GrowthRate,
		} {
			require.Equal(t, TrendOf(mv.ChangePercent), mv.Trend)
		}
	}
}
