package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/models"
)

func newStore(t *testing.T, max int) *Store[int64] {
	t.Helper()
	return New[int64](max, zap.NewNop())
}

func TestAppendAndGet(t *testing.T) {
	s := newStore(t, 20)
	s.Append(1, models.RoleUser, "hello")
	s.Append(1, models.RoleAssistant, "hi there")

	require.Equal(t, []models.Turn{
		models.UserTurn("hello"),
		models.AssistantTurn("hi there"),
	}, s.Get(1))
}

func TestEvictsOldestWhenFull(t *testing.T) {
	s := newStore(t, 3)
	s.Append(7, models.RoleUser, "Msg1")
	s.Append(7, models.RoleAssistant, "Msg2")
	s.Append(7, models.RoleUser, "Msg3")
	s.Append(7, models.RoleAssistant, "Msg4")

	require.Equal(t, []models.Turn{
		models.AssistantTurn("Msg2"),
		models.UserTurn("Msg3"),
		models.AssistantTurn("Msg4"),
	}, s.Get(7))
}

func TestBoundHoldsForAnySequence(t *testing.T) {
	for _, max := range []int{1, 2, 5} {
		for _, n := range []int{0, 1, 4, 5, 6, 17} {
			t.Run(fmt.Sprintf("max=%d/n=%d", max, n), func(t *testing.T) {
				s := newStore(t, max)
				for i := 0; i < n; i++ {
					s.Append(1, models.RoleUser, fmt.Sprintf("m%d", i))
					require.LessOrEqual(t, s.Len(1), max)
				}

				kept := min(n, max)
				got := s.Get(1)
				require.Len(t, got, kept)
				for i, turn := range got {
					require.Equal(t, fmt.Sprintf("m%d", n-kept+i), turn.Content)
				}
			})
		}
	}
}

func TestDefaultMaxMessages(t *testing.T) {
	s := newStore(t, 0)
	require.Equal(t, DefaultMaxMessages, s.MaxMessages())
}

func TestEmptyContentIsIgnored(t *testing.T) {
	s := newStore(t, 5)
	s.Append(1, models.RoleUser, "")
	require.Empty(t, s.Get(1))
	require.Equal(t, Stats{}, s.Stats())
}

func TestIdentitiesAreIndependent(t *testing.T) {
	s := newStore(t, 5)
	s.Append(1, models.RoleUser, "from one")
	s.Append(2, models.RoleUser, "from two")

	require.Equal(t, []models.Turn{models.UserTurn("from one")}, s.Get(1))
	require.Equal(t, []models.Turn{models.UserTurn("from two")}, s.Get(2))
}

func TestGetReturnsCopy(t *testing.T) {
	s := newStore(t, 5)
	s.Append(1, models.RoleUser, "original")

	got := s.Get(1)
	got[0].Content = "mutated"
	_ = append(got, models.UserTurn("extra"))

	require.Equal(t, []models.Turn{models.UserTurn("original")}, s.Get(1))
}

func TestGetUnknownIdentity(t *testing.T) {
	s := newStore(t, 5)
	got := s.Get(42)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestClear(t *testing.T) {
	s := newStore(t, 5)
	s.Append(1, models.RoleUser, "a")
	s.Append(2, models.RoleUser, "b")

	s.Clear(1)
	require.Empty(t, s.Get(1))
	require.Len(t, s.Get(2), 1)

	require.NotPanics(t, func() { s.Clear(1) })
	require.NotPanics(t, func() { s.Clear(999) })
}

func TestStats(t *testing.T) {
	s := newStore(t, 5)
	require.Equal(t, Stats{}, s.Stats())

	s.Append(1, models.RoleUser, "a")
	s.Append(1, models.RoleAssistant, "b")
	s.Append(2, models.RoleUser, "c")
	require.Equal(t, Stats{TotalIdentities: 2, TotalTurns: 3}, s.Stats())
}

func TestStringIdentities(t *testing.T) {
	s := New[string](2, nil)
	s.Append("session-a", models.RoleUser, "x")
	require.Len(t, s.Get("session-a"), 1)
	require.Empty(t, s.Get("session-b"))
}

func TestConcurrentAppends(t *testing.T) {
	s := newStore(t, 10)
	var wg sync.WaitGroup
	for id := int64(0); id < 8; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append(id, models.RoleUser, fmt.Sprintf("%d-%d", id, i))
				_ = s.Get(id)
			}
		}(id)
	}
	wg.Wait()

	st := s.Stats()
	require.Equal(t, 8, st.TotalIdentities)
	require.Equal(t, 80, st.TotalTurns)
	for id := int64(0); id < 8; id++ {
		got := s.Get(id)
		require.Equal(t, fmt.Sprintf("%d-99", id), got[len(got)-1].Content)
	}
}

func TestEvictOldestPanicsOnEmpty(t *testing.T) {
	require.Panics(t, func() { evictOldest(nil) })
}

func TestAppendExchangeKeepsPairsTogether(t *testing.T) {
	s := newStore(t, 200)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AppendExchange(1, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	turns := s.Get(1)
	require.Len(t, turns, 100)
	for i := 0; i < len(turns); i += 2 {
		require.Equal(t, models.RoleUser, turns[i].Role)
		require.Equal(t, models.RoleAssistant, turns[i+1].Role)
		require.Equal(t, "a"+turns[i].Content[1:], turns[i+1].Content)
	}
}

func TestRestoreSeedsOnlyEmptyHistory(t *testing.T) {
	s := newStore(t, 3)
	stored := []models.Turn{
		{Role: models.RoleUser, Content: "one"},
		{Role: models.RoleAssistant, Content: "two"},
		{Role: models.RoleUser, Content: "three"},
		{Role: models.RoleAssistant, Content: "four"},
	}

	require.True(t, s.Restore(1, stored))
	require.Equal(t, stored[1:], s.Get(1))

	require.False(t, s.Restore(1, stored))
	require.Len(t, s.Get(1), 3)
}

func TestConcurrentRestoreAppliesOnce(t *testing.T) {
	s := newStore(t, 20)
	stored := []models.Turn{
		{Role: models.RoleUser, Content: "old question"},
		{Role: models.RoleAssistant, Content: "old answer"},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	restored := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Restore(1, stored) {
				mu.Lock()
				restored++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, restored)
	require.Equal(t, stored, s.Get(1))
}
