package flow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // time conditions must work on hosts without zoneinfo
	"unicode"

	"github.com/corretor-crm/corretor/pkg/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTimezone is used by time conditions that do not set one.
const DefaultTimezone = "America/Sao_Paulo"

// IntentResolver maps a free-text reply to one of the candidate intents.
type IntentResolver interface {
	ResolveIntent(ctx context.Context, text string, intents []string) (string, error)
}

// IntentResolverFunc adapts a function to IntentResolver.
type IntentResolverFunc func(ctx context.Context, text string, intents []string) (string, error)

func (f IntentResolverFunc) ResolveIntent(ctx context.Context, text string, intents []string) (string, error) {
	return f(ctx, text, intents)
}

// literalIntents treats the normalized reply itself as the intent.
var literalIntents = IntentResolverFunc(func(_ context.Context, text string, _ []string) (string, error) {
	return Fold(text), nil
})

// Fold lower-cases s, strips diacritics and collapses whitespace so that
// "Não, OBRIGADO" and "nao obrigado" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// needsInput reports whether a condition of this type waits for a reply.
func needsInput(conditionType models.ConditionType) bool {
	return conditionType == models.ConditionTypeKeyword || conditionType == models.ConditionTypeIntent
}

// isDefault reports whether a branch is the catch-all of its condition.
func isDefault(conditionType models.ConditionType, branch models.Branch) bool {
	if conditionType == models.ConditionTypeKeyword {
		return len(nonEmpty(branch.Keywords)) == 0
	}

	return strings.TrimSpace(branch.Value) == "" && len(nonEmpty(branch.Keywords)) == 0
}

func nonEmpty(keywords []string) []string {
	out := make([]string, 0, len(keywords))

	for _, keyword := range keywords {
		if strings.TrimSpace(keyword) != "" {
			out = append(out, keyword)
		}
	}

	return out
}

// MatchKeywords returns the first branch, in array order, that has a keyword
// contained in text. When none matches, the first branch with an empty
// keyword list is returned. Returns nil when neither exists.
func MatchKeywords(branches []models.Branch, text string) *models.Branch {
	folded := Fold(text)

	for i := range branches {
		for _, keyword := range nonEmpty(branches[i].Keywords) {
			if strings.Contains(folded, Fold(keyword)) {
				return &branches[i]
			}
		}
	}

	return defaultBranch(models.ConditionTypeKeyword, branches)
}

func defaultBranch(conditionType models.ConditionType, branches []models.Branch) *models.Branch {
	for i := range branches {
		if isDefault(conditionType, branches[i]) {
			return &branches[i]
		}
	}

	return nil
}

// matchValue picks the first non-default branch accepted by match, falling
// back to the default branch.
func matchValue(conditionType models.ConditionType, branches []models.Branch, match func(models.Branch) bool) *models.Branch {
	for i := range branches {
		if isDefault(conditionType, branches[i]) {
			continue
		}

		if match(branches[i]) {
			return &branches[i]
		}
	}

	return defaultBranch(conditionType, branches)
}

// TimeRange is a daily window such as 08:00-18:00. End is exclusive.
// A window whose end precedes its start wraps around midnight.
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

// ParseTimeRange parses "HH:MM-HH:MM".
func ParseTimeRange(s string) (TimeRange, error) {
	parts := strings.Split(strings.ReplaceAll(s, " ", ""), "-")
	if len(parts) != 2 {
		return TimeRange{}, fmt.Errorf("invalid time range %q, expected HH:MM-HH:MM", s)
	}

	start, err := parseClock(parts[0])
	if err != nil {
		return TimeRange{}, fmt.Errorf("invalid time range %q: %w", s, err)
	}

	end, err := parseClock(parts[1])
	if err != nil {
		return TimeRange{}, fmt.Errorf("invalid time range %q: %w", s, err)
	}

	return TimeRange{Start: start, End: end}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}

	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether the wall clock of t falls inside the window.
func (r TimeRange) Contains(t time.Time) bool {
	clock := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute

	if r.Start <= r.End {
		return clock >= r.Start && clock < r.End
	}

	return clock >= r.Start || clock < r.End
}

// evaluator resolves condition branches against the session state.
type evaluator struct {
	intents IntentResolver
	clock   func() time.Time
	logf    func(level LogLevel, nodeID, format string, args ...any)
}

func (e *evaluator) selectBranch(
	ctx context.Context,
	nodeID string,
	cfg models.ConditionConfig,
	input string,
	variables map[string]any,
	tags []string,
) *models.Branch {
	switch cfg.ConditionType {
	case models.ConditionTypeKeyword:
		return MatchKeywords(cfg.Branches, input)

	case models.ConditionTypeVariable:
		resolved := ""
		if value, ok := variables[cfg.Variable]; ok && value != nil {
			resolved = strings.TrimSpace(fmt.Sprint(value))
		}

		return matchValue(cfg.ConditionType, cfg.Branches, func(b models.Branch) bool {
			return strings.TrimSpace(b.Value) == resolved
		})

	case models.ConditionTypeTag:
		return matchValue(cfg.ConditionType, cfg.Branches, func(b models.Branch) bool {
			return slices.Contains(tags, strings.TrimSpace(b.Value))
		})

	case models.ConditionTypeTime:
		tz := cfg.Timezone
		if tz == "" {
			tz = DefaultTimezone
		}

		loc, err := time.LoadLocation(tz)
		if err != nil {
			e.logf(LogLevelWarn, nodeID, "unknown timezone %q, using UTC", tz)

			loc = time.UTC
		}

		now := e.clock().In(loc)

		return matchValue(cfg.ConditionType, cfg.Branches, func(b models.Branch) bool {
			window, err := ParseTimeRange(b.Value)
			if err != nil {
				e.logf(LogLevelWarn, nodeID, "branch %s: %v", b.ID, err)

				return false
			}

			return window.Contains(now)
		})

	case models.ConditionTypeIntent:
		candidates := make([]string, 0, len(cfg.Branches))
		for _, b := range cfg.Branches {
			if !isDefault(cfg.ConditionType, b) {
				candidates = append(candidates, b.Value)
			}
		}

		resolved, err := e.intents.ResolveIntent(ctx, input, candidates)
		if err != nil {
			e.logf(LogLevelWarn, nodeID, "intent resolution failed: %v", err)

			return defaultBranch(cfg.ConditionType, cfg.Branches)
		}

		return matchValue(cfg.ConditionType, cfg.Branches, func(b models.Branch) bool {
			return Fold(b.Value) == Fold(resolved)
		})

	default:
		e.logf(LogLevelError, nodeID, "unsupported condition type %q", cfg.ConditionType)

		return nil
	}
}
