package pattern

import (
	"regexp"
	"time"

	"github.com/riskcore/decisioncore/internal/decisionerr"
)

// stdBackend compiles every pattern to a regexp.Regexp and scans with it
// directly. It is the baseline backend (§9): no third-party regex engine
// in the example pack improves on stdlib regexp for pre-compiled pattern
// sets, so STD is the one backend legitimately built on the
// standard library alone (see DESIGN.md).
type stdBackend struct {
	compiled []compiledEntry
}

type compiledEntry struct {
	pattern Pattern
	regex   *regexp.Regexp
}

func newStdBackend() *stdBackend { return &stdBackend{} }

func (b *stdBackend) Name() string { return "std" }

func (b *stdBackend) Compile(patterns []Pattern) error {
	compiled := make([]compiledEntry, 0, len(patterns))
	for _, p := range patterns {
		re, err := ToRegex(p.PatternText, p.Kind, p.CaseSensitive)
		if err != nil {
			return decisionerr.Wrap("pattern", decisionerr.PatternCompileErr,
				"compile failed for pattern "+p.Name, err)
		}
		compiled = append(compiled, compiledEntry{pattern: p, regex: re})
	}
	b.compiled = compiled
	return nil
}

func (b *stdBackend) MatchText(text string, categoryFilter *Category) Results {
	start := time.Now()
	res := Results{TextsProcessed: 1}
	for _, ce := range b.compiled {
		res.PatternsChecked++
		if categoryFilter != nil && ce.pattern.Category != *categoryFilter {
			continue
		}
		loc := ce.regex.FindStringIndex(text)
		if loc == nil {
			continue
		}
		res.add(Match{
			PatternID:   ce.pattern.ID,
			PatternName: ce.pattern.Name,
			MatchedText: text[loc[0]:loc[1]],
			Start:       loc[0],
			End:         loc[1],
			Category:    ce.pattern.Category,
		})
	}
	res.EvaluationTime = time.Since(start)
	return res
}
