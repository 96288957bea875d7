package badges

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/models"
	"github.com/loommail/backend/internal/testutil"
)

func TestUnlockForCount(t *testing.T) {
	tests := []struct {
		total     int
		wantBadge string
		wantLevel int
		wantOK    bool
	}{
		{0, "", 0, false},
		{1, "Inbox Explorer", 1, true},
		{2, "", 0, false},
		{99, "", 0, false},
		{100, "Email Wrangler", 3, true},
		{101, "", 0, false},
		{500, "Inbox Whisperer", 5, true},
		{1000, "Efficiency Ace", 7, true},
		{2000, "Action Conqueror", 9, true},
		{5000, "Productivity Titan", 10, true},
		{5001, "", 0, false},
	}

	for _, tt := range tests {
		event, ok := UnlockForCount(tt.total)
		if ok != tt.wantOK {
			t.Errorf("UnlockForCount(%d) ok = %v, want %v", tt.total, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if event.BadgeName != tt.wantBadge {
			t.Errorf("UnlockForCount(%d) badge = %q, want %q", tt.total, event.BadgeName, tt.wantBadge)
		}
		if event.LevelNumber != tt.wantLevel {
			t.Errorf("UnlockForCount(%d) level = %d, want %d", tt.total, event.LevelNumber, tt.wantLevel)
		}
		if event.Type != "level" {
			t.Errorf("UnlockForCount(%d) type = %q, want level", tt.total, event.Type)
		}
	}
}

func interactionsAt(times ...time.Time) []*models.Interaction {
	var interactions []*models.Interaction
	for _, at := range times {
		interactions = append(interactions, &models.Interaction{CreatedAt: at})
	}
	return interactions
}

func TestLongestDailyStreak(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, time.March, d, 12, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name         string
		interactions []*models.Interaction
		want         int
	}{
		{"no interactions", nil, 0},
		{"single day", interactionsAt(day(1)), 1},
		{"same day twice still counts once", interactionsAt(day(1), day(1).Add(time.Hour)), 1},
		{"three consecutive days", interactionsAt(day(1), day(2), day(3)), 3},
		{"gap resets the streak", interactionsAt(day(1), day(2), day(5), day(6), day(7)), 3},
		{"longest run wins over latest", interactionsAt(day(1), day(2), day(3), day(4), day(9), day(10)), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := longestDailyStreak(tt.interactions); got != tt.want {
				t.Errorf("longestDailyStreak = %d, want %d", got, tt.want)
			}
		})
	}
}

func dueNames(metrics *Metrics, unlocked map[string]struct{}) []string {
	var names []string
	for _, badge := range metricBadgesDue(metrics, unlocked) {
		names = append(names, badge.name)
	}
	return names
}

func TestMetricBadgesDue(t *testing.T) {
	t.Run("thresholds gate each badge", func(t *testing.T) {
		metrics := &Metrics{TaskCompletion: 10, ProductivityStreak: 3}
		want := []string{"Task Starter", "Streak Spark"}
		if got := dueNames(metrics, nil); !slices.Equal(got, want) {
			t.Errorf("due = %v, want %v", got, want)
		}
	})

	t.Run("higher tiers come due together", func(t *testing.T) {
		metrics := &Metrics{TaskCompletion: 50, ProductivityStreak: 7, EmailCategorization: 10}
		want := []string{"Task Starter", "Task Machine", "Streak Spark", "Streak Keeper", "Label Artisan"}
		if got := dueNames(metrics, nil); !slices.Equal(got, want) {
			t.Errorf("due = %v, want %v", got, want)
		}
	})

	t.Run("held badges are skipped", func(t *testing.T) {
		metrics := &Metrics{TaskCompletion: 50}
		held := map[string]struct{}{"Task Starter": {}}
		want := []string{"Task Machine"}
		if got := dueNames(metrics, held); !slices.Equal(got, want) {
			t.Errorf("due = %v, want %v", got, want)
		}
	})

	t.Run("speed bursts award once each", func(t *testing.T) {
		metrics := &Metrics{SpeedTasks: SpeedTasks{LastThreeUnder20Minutes: 1}}
		want := []string{"Lightning Sorter"}
		if got := dueNames(metrics, nil); !slices.Equal(got, want) {
			t.Errorf("due = %v, want %v", got, want)
		}
	})
}

func TestOnThreadCompleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := testutil.NewTestDB(t)
	ctx := context.Background()
	ladder := NewLadder(pool)

	userID, err := db.GetOrCreateUser(ctx, pool, "sub-1", "a@x.com")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	record := func(threadID string) {
		t.Helper()
		if _, err := db.RecordInteraction(ctx, pool, threadID, userID); err != nil {
			t.Fatalf("RecordInteraction(%s): %v", threadID, err)
		}
	}

	// The first completion sits exactly on the ladder's first tier.
	record("t-1")
	events, err := ladder.OnThreadCompleted(ctx, userID)
	if err != nil {
		t.Fatalf("OnThreadCompleted: %v", err)
	}
	if len(events) != 1 || events[0].Type != "level" || events[0].BadgeName != "Inbox Explorer" {
		t.Fatalf("events = %+v, want the first level unlock", events)
	}

	// Three completions inside twenty minutes trip the speed metric. The
	// count is off the first tier now, so only the metric badge fires.
	record("t-2")
	record("t-3")
	events, err = ladder.OnThreadCompleted(ctx, userID)
	if err != nil {
		t.Fatalf("OnThreadCompleted: %v", err)
	}
	if len(events) != 1 || events[0].Type != "badge" || events[0].BadgeName != "Lightning Sorter" {
		t.Fatalf("events = %+v, want Lightning Sorter", events)
	}

	// Re-evaluating with unchanged metrics awards nothing new.
	events, err = ladder.OnThreadCompleted(ctx, userID)
	if err != nil {
		t.Fatalf("OnThreadCompleted: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("repeat evaluation awarded %+v", events)
	}
}
