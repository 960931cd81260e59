package core

// Action is a recorded delivery outcome for a (surface, visitor) pair.
type Action string

const (
	ActionShown          Action = "shown"
	ActionClicked        Action = "clicked"
	ActionCompleted      Action = "completed"
	ActionDismissed      Action = "dismissed"
	ActionScreenProgress Action = "screen_progressed"
)

// Valid reports whether a is a known impression action.
func (a Action) Valid() bool {
	switch a {
	case ActionShown, ActionClicked, ActionCompleted, ActionDismissed, ActionScreenProgress:
		return true
	default:
		return false
	}
}

// Terminal reports whether a permanently closes out a surface for a visitor.
// At most one terminal impression may ever exist per (surface, visitor).
func (a Action) Terminal() bool {
	return a == ActionCompleted || a == ActionDismissed
}

// Suppression holds the per-visitor exposure facts derived from the
// impression log for a single surface. It is rebuilt for every eligibility
// call and never persisted.
type Suppression struct {
	Terminal         bool
	EverShown        bool
	ShownThisSession bool
}

// Suppressed applies the frequency policy to the derived exposure facts.
// repeatUntilCompleted lets until_completed surfaces bypass the per-session
// shown check; the default keeps per-session suppression for every frequency.
func Suppressed(frequency Frequency, facts Suppression, repeatUntilCompleted bool) bool {
	if facts.Terminal {
		return true
	}
	if frequency == FrequencyOnce && facts.EverShown {
		return true
	}
	if facts.ShownThisSession {
		if frequency == FrequencyUntilCompleted && repeatUntilCompleted {
			return false
		}
		return true
	}
	return false
}

// Stats are the aggregate delivery outcomes for a surface, derived by folding
// its impression log. Rates are fractions of shown impressions.
type Stats struct {
	Shown          int     `json:"shown"`
	Clicked        int     `json:"clicked"`
	Completed      int     `json:"completed"`
	Dismissed      int     `json:"dismissed"`
	CompletionRate float64 `json:"completionRate"`
	ClickRate      float64 `json:"clickRate"`
}

// StatsFromCounts derives Stats from per-action impression counts.
func StatsFromCounts(counts map[Action]int) Stats {
	stats := Stats{
		Shown:     counts[ActionShown],
		Clicked:   counts[ActionClicked],
		Completed: counts[ActionCompleted],
		Dismissed: counts[ActionDismissed],
	}
	if stats.Shown > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Shown)
		stats.ClickRate = float64(stats.Clicked) / float64(stats.Shown)
	}
	return stats
}
