package rules

import (
	"sort"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// Match pairs a rule with its match result and score.
type Match struct {
	Rule              domain.Rule        `json:"rule"`
	MatchedConditions []MatchedCondition `json:"matched_conditions"`
	Score             int                `json:"score"`
}

// Score computes the deterministic ranking score for a matched rule.
// Priority 1 scores higher than priority 3; each matched condition adds a
// flat bonus plus a per-kind bonus.
func Score(rule domain.Rule, matched []MatchedCondition) int {
	score := (4 - rule.Priority) * 10
	score += len(matched) * 5

	for _, mc := range matched {
		switch mc.Type {
		case ConditionSeverity:
			score += 20
		case ConditionServiceType:
			score += 15
		case ConditionDuration:
			score += 10
		case ConditionOutsideWorkingHours, ConditionWorkDaysOnly:
			score += 8
		default:
			score += 3
		}
	}

	return score
}

// Rank orders matches by ascending rule priority, breaking ties by
// descending score. The sort is stable, so equal (priority, score) pairs
// keep their evaluation order. The ranking determines the order in which
// matched rules' actions are merged into an escalation's timeline; it does
// not deduplicate.
func Rank(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Rule.Priority != matches[j].Rule.Priority {
			return matches[i].Rule.Priority < matches[j].Rule.Priority
		}
		return matches[i].Score > matches[j].Score
	})
}
