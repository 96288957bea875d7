// Package badges is the gamification collaborator: it turns completed-thread
// milestones into unlock events the client shows as toasts.
package badges

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/models"
)

// Unlocker is consumed by the mutator on the first "done" transition of a
// thread. It owns no state in the mailbox core.
type Unlocker interface {
	OnThreadCompleted(ctx context.Context, userID string) ([]models.UnlockEvent, error)
}

type tier struct {
	count int
	name  string
	toast string
	hex   string
	level int
}

// The ladder unlocks on exact lifetime counts. A user who skips past a
// threshold (bulk completion) does not retroactively unlock it; only the
// highest tier crossed by the current transition fires.
var ladder = []tier{
	{1, "Inbox Explorer", "Welcome aboard! You're officially an Inbox Explorer. Let's conquer your emails together!", "#A8E6A3", 1},
	{100, "Email Wrangler", "Fantastic! You're mastering your emails one by one. You've earned the title of Email Wrangler!", "#66BB6A", 3},
	{500, "Inbox Whisperer", "Wow! Your inbox listens to you now. Congratulations on becoming an Inbox Whisperer!", "#66BB6A", 5},
	{1000, "Efficiency Ace", "Ace unlocked! Your inbox doesn't stand a chance against your efficiency. Welcome, Efficiency Ace!", "#66BB6A", 7},
	{2000, "Action Conqueror", "You've conquered the inbox battlefield! Action Conqueror status unlocked, take a bow!", "#66BB6A", 9},
	{5000, "Productivity Titan", "Legend achieved! You're now a Productivity Titan. Your email mastery is unmatched. Bravo!", "#66BB6A", 10},
}

// UnlockForCount returns the unlock event for a lifetime completion count, if
// the count sits exactly on a ladder tier.
func UnlockForCount(total int) (models.UnlockEvent, bool) {
	for i := len(ladder) - 1; i >= 0; i-- {
		if ladder[i].count == total {
			t := ladder[i]
			return models.UnlockEvent{
				BadgeName:    t.name,
				ToastMessage: t.toast,
				Hex:          t.hex,
				Type:         "level",
				LevelNumber:  t.level,
			}, true
		}
	}
	return models.UnlockEvent{}, false
}

// Ladder implements Unlocker over the interaction records.
type Ladder struct {
	pool *pgxpool.Pool
}

// NewLadder creates the unlocker.
func NewLadder(pool *pgxpool.Pool) *Ladder {
	return &Ladder{pool: pool}
}

// metricBadge is one entry of the metric-threshold catalog: the badge is
// awarded the first time its metric reaches the step.
type metricBadge struct {
	name  string
	toast string
	hex   string
	step  int
	value func(*Metrics) int
}

var catalog = []metricBadge{
	{"Task Starter", "Ten threads done and dusted. You're a Task Starter!", "#FFD54F", 10,
		func(m *Metrics) int { return m.TaskCompletion }},
	{"Task Machine", "Fifty threads closed out. The Task Machine has arrived!", "#FFB300", 50,
		func(m *Metrics) int { return m.TaskCompletion }},
	{"Streak Spark", "Three days in a row! Your Streak Spark is lit.", "#4FC3F7", 3,
		func(m *Metrics) int { return m.ProductivityStreak }},
	{"Streak Keeper", "A full week of daily triage. Streak Keeper, take a bow!", "#0288D1", 7,
		func(m *Metrics) int { return m.ProductivityStreak }},
	{"Lightning Sorter", "Three threads in twenty minutes. That's Lightning Sorter speed!", "#BA68C8", 1,
		func(m *Metrics) int { return m.SpeedTasks.LastThreeUnder20Minutes }},
	{"Rapid Responder", "Five threads in forty minutes. Rapid Responder unlocked!", "#AB47BC", 1,
		func(m *Metrics) int { return m.SpeedTasks.LastFiveUnder40Minutes }},
	{"Marathon Triager", "Eight threads in an hour. You're a Marathon Triager!", "#8E24AA", 1,
		func(m *Metrics) int { return m.SpeedTasks.LastEightUnder60Minutes }},
	{"Label Artisan", "Ten completed threads sorted into your own categories. Label Artisan!", "#FF8A65", 10,
		func(m *Metrics) int { return m.EmailCategorization }},
}

// metricBadgesDue returns the catalog entries whose threshold the metrics
// meet and that the user does not hold yet.
func metricBadgesDue(metrics *Metrics, unlocked map[string]struct{}) []metricBadge {
	var due []metricBadge
	for _, badge := range catalog {
		if badge.value(metrics) < badge.step {
			continue
		}
		if _, held := unlocked[badge.name]; held {
			continue
		}
		due = append(due, badge)
	}
	return due
}

// OnThreadCompleted evaluates the level ladder against the user's lifetime
// count, then the metric-badge catalog against the current metrics. The
// caller guarantees the completion was just recorded, so the count includes
// it. Newly awarded badges are persisted so each fires once.
func (l *Ladder) OnThreadCompleted(ctx context.Context, userID string) ([]models.UnlockEvent, error) {
	total, err := db.CountInteractions(ctx, l.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate unlocks: %w", err)
	}

	var events []models.UnlockEvent
	if event, ok := UnlockForCount(total); ok {
		events = append(events, event)
	}

	metrics, err := l.GetMetrics(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked, err := db.ListUnlockedBadges(ctx, l.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate unlocks: %w", err)
	}

	for _, badge := range metricBadgesDue(metrics, unlocked) {
		awarded, err := db.RecordBadgeUnlock(ctx, l.pool, userID, badge.name)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate unlocks: %w", err)
		}
		if !awarded {
			continue
		}
		events = append(events, models.UnlockEvent{
			BadgeName:    badge.name,
			ToastMessage: badge.toast,
			Hex:          badge.hex,
			Type:         "badge",
		})
	}

	return events, nil
}

// SpeedTasks counts recent completion bursts.
type SpeedTasks struct {
	LastThreeUnder20Minutes int `json:"lastThreeUnder20Minutes"`
	LastFiveUnder40Minutes  int `json:"lastFiveUnder40Minutes"`
	LastEightUnder60Minutes int `json:"lastEightUnder60Minutes"`
}

// Metrics aggregates the user's gamification counters.
type Metrics struct {
	TaskCompletion      int        `json:"taskCompletion"`
	ProductivityStreak  int        `json:"productivityStreak"`
	SpeedTasks          SpeedTasks `json:"speedTasks"`
	EmailCategorization int        `json:"emailCategorization"`
}

// GetMetrics computes the user's current metrics from the interaction log.
func (l *Ladder) GetMetrics(ctx context.Context, userID string) (*Metrics, error) {
	interactions, err := db.ListInteractions(ctx, l.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics: %w", err)
	}

	categorized, err := db.CountCategorizedInteractions(ctx, l.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics: %w", err)
	}

	now := time.Now()
	metrics := &Metrics{
		TaskCompletion:      len(interactions),
		ProductivityStreak:  longestDailyStreak(interactions),
		EmailCategorization: categorized,
	}

	windows := []struct {
		window    time.Duration
		threshold int
		flag      *int
	}{
		{20 * time.Minute, 3, &metrics.SpeedTasks.LastThreeUnder20Minutes},
		{40 * time.Minute, 5, &metrics.SpeedTasks.LastFiveUnder40Minutes},
		{60 * time.Minute, 8, &metrics.SpeedTasks.LastEightUnder60Minutes},
	}
	for _, w := range windows {
		recent, err := db.CountInteractionsSince(ctx, l.pool, userID, now.Add(-w.window))
		if err != nil {
			return nil, fmt.Errorf("failed to compute metrics: %w", err)
		}
		if recent >= w.threshold {
			*w.flag = 1
		}
	}

	return metrics, nil
}

// longestDailyStreak returns the longest run of consecutive days with at
// least one completion. Interactions must be sorted oldest first.
func longestDailyStreak(interactions []*models.Interaction) int {
	if len(interactions) == 0 {
		return 0
	}

	var days []time.Time
	seen := map[string]struct{}{}
	for _, interaction := range interactions {
		day := interaction.CreatedAt.UTC().Truncate(24 * time.Hour)
		key := day.Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, day)
	}

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}
