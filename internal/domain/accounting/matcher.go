package accounting

import (
	"sort"
	"strings"
	"time"
)

// MatcherConfig tunes the reconciliation scorer. Zero values fall back
// to the defaults used in production.
type MatcherConfig struct {
	AutoMatchThreshold float64
	ReviewThreshold    float64
	DateWindowDays     int
	MaxCandidates      int
}

// DefaultMatcherConfig returns the production scoring thresholds
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		AutoMatchThreshold: 0.80,
		ReviewThreshold:    0.50,
		DateWindowDays:     3,
		MaxCandidates:      5,
	}
}

func (c MatcherConfig) normalized() MatcherConfig {
	d := DefaultMatcherConfig()
	if c.AutoMatchThreshold <= 0 {
		c.AutoMatchThreshold = d.AutoMatchThreshold
	}
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = d.ReviewThreshold
	}
	if c.DateWindowDays <= 0 {
		c.DateWindowDays = d.DateWindowDays
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	return c
}

// Score components are sums of decimal fractions; compare against the
// thresholds with a tolerance so 0.5+0.3 still clears 0.8.
const scoreEpsilon = 1e-9

// MatchScorer scores pending payments against statement lines. Amount
// equality is a hard gate; reference, date proximity and description
// overlap rank the survivors.
type MatchScorer struct {
	cfg MatcherConfig
}

// NewMatchScorer creates a scorer with the given thresholds
func NewMatchScorer(cfg MatcherConfig) *MatchScorer {
	return &MatchScorer{cfg: cfg.normalized()}
}

// Config returns the effective configuration
func (s *MatchScorer) Config() MatcherConfig {
	return s.cfg
}

// Score rates one payment against one statement line in [0, 1].
// A zero score means the hard amount gate failed.
func (s *MatchScorer) Score(line *BankStatementLine, payment *Payment) float64 {
	if !line.Amount.Equals(payment.Amount) {
		return 0
	}

	score := 0.0

	// Reference: 0.5 exact, 0.25 substring either way
	lineRef := normalizeReference(line.RawReference)
	payRef := normalizeReference(payment.ExternalReference)
	if lineRef != "" && payRef != "" {
		if lineRef == payRef {
			score += 0.5
		} else if strings.Contains(lineRef, payRef) || strings.Contains(payRef, lineRef) {
			score += 0.25
		}
	}

	// Date proximity: 0.3 same day, 0.2 one day, 0.1 inside the window
	days := daysBetween(line.ValueDate, payment.ReceivedAt)
	switch {
	case days == 0:
		score += 0.3
	case days == 1:
		score += 0.2
	case days <= s.cfg.DateWindowDays:
		score += 0.1
	}

	// Description keyword overlap, up to 0.2
	score += descriptionOverlap(line.Description, payment.Note)

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// RankCandidates scores every payment and returns the candidates at or
// above the review threshold, best first, capped at MaxCandidates.
func (s *MatchScorer) RankCandidates(line *BankStatementLine, payments []*Payment) MatchCandidates {
	candidates := make(MatchCandidates, 0, len(payments))
	for _, p := range payments {
		if p.Status != PaymentStatusPending || p.MatchedLineID != nil {
			continue
		}
		if score := s.Score(line, p); score+scoreEpsilon >= s.cfg.ReviewThreshold {
			candidates = append(candidates, MatchCandidate{PaymentID: p.ID, Score: score})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}
	return candidates
}

// IsAutoMatch reports whether the best candidate clears the auto threshold
// without a runner-up inside the same band, which would make the choice
// ambiguous.
func (s *MatchScorer) IsAutoMatch(candidates MatchCandidates) bool {
	if len(candidates) == 0 || candidates[0].Score+scoreEpsilon < s.cfg.AutoMatchThreshold {
		return false
	}
	if len(candidates) > 1 && candidates[1].Score+scoreEpsilon >= s.cfg.AutoMatchThreshold {
		return false
	}
	return true
}

func normalizeReference(ref string) string {
	return strings.ToUpper(strings.Join(strings.Fields(ref), ""))
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

func descriptionOverlap(lineDesc, paymentNote string) float64 {
	lineWords := keywordSet(lineDesc)
	noteWords := keywordSet(paymentNote)
	if len(lineWords) == 0 || len(noteWords) == 0 {
		return 0
	}
	common := 0
	for w := range noteWords {
		if _, ok := lineWords[w]; ok {
			common++
		}
	}
	if common == 0 {
		return 0
	}
	overlap := float64(common) / float64(len(noteWords))
	return 0.2 * overlap
}

func keywordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) >= 3 {
			set[w] = struct{}{}
		}
	}
	return set
}
