package pattern

import (
	"regexp"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/riskcore/decisioncore/internal/decisionerr"
)

// highPerfBackend specializes each pattern kind instead of routing
// everything through regexp: exact patterns use a plain substring search,
// wildcard patterns compile to a github.com/gobwas/glob matcher (a
// non-backtracking automaton, cheaper than regexp for the pure
// glob-style * / ? grammar §4.3 requires), and CIDR patterns still use the
// shared regex conversion since no glob-style library expresses address
// ranges. This is the AUTO-preferred backend when available.
type highPerfBackend struct {
	exact    []exactEntry
	wildcard []wildcardEntry
	cidr     []compiledEntry
}

type exactEntry struct {
	pattern       Pattern
	text          string
	caseSensitive bool
}

type wildcardEntry struct {
	pattern Pattern
	g       glob.Glob
}

func newHighPerfBackend() *highPerfBackend { return &highPerfBackend{} }

func (b *highPerfBackend) Name() string { return "high_perf" }

func (b *highPerfBackend) Compile(patterns []Pattern) error {
	var exact []exactEntry
	var wildcard []wildcardEntry
	var cidr []compiledEntry

	for _, p := range patterns {
		switch p.Kind {
		case KindExact:
			text := p.PatternText
			if !p.CaseSensitive {
				text = strings.ToLower(text)
			}
			exact = append(exact, exactEntry{pattern: p, text: text, caseSensitive: p.CaseSensitive})
		case KindWildcard:
			g, err := glob.Compile(p.PatternText)
			if err != nil {
				return decisionerr.Wrap("pattern", decisionerr.PatternCompileErr,
					"glob compile failed for pattern "+p.Name, err)
			}
			wildcard = append(wildcard, wildcardEntry{pattern: p, g: g})
		case KindCIDR:
			re, err := cidrRegexFor(p)
			if err != nil {
				return err
			}
			cidr = append(cidr, compiledEntry{pattern: p, regex: re})
		}
	}

	b.exact, b.wildcard, b.cidr = exact, wildcard, cidr
	return nil
}

func cidrRegexFor(p Pattern) (*regexp.Regexp, error) {
	re, err := ToRegex(p.PatternText, KindCIDR, true)
	if err != nil {
		return nil, decisionerr.Wrap("pattern", decisionerr.PatternCompileErr,
			"compile failed for pattern "+p.Name, err)
	}
	return re, nil
}

func (b *highPerfBackend) MatchText(text string, categoryFilter *Category) Results {
	start := time.Now()
	res := Results{TextsProcessed: 1}
	lower := strings.ToLower(text)

	for _, e := range b.exact {
		res.PatternsChecked++
		if categoryFilter != nil && e.pattern.Category != *categoryFilter {
			continue
		}
		haystack := text
		if !e.caseSensitive {
			haystack = lower
		}
		idx := strings.Index(haystack, e.text)
		if idx < 0 {
			continue
		}
		res.add(Match{
			PatternID: e.pattern.ID, PatternName: e.pattern.Name,
			MatchedText: text[idx : idx+len(e.text)], Start: idx, End: idx + len(e.text),
			Category: e.pattern.Category,
		})
	}

	for _, w := range b.wildcard {
		res.PatternsChecked++
		if categoryFilter != nil && w.pattern.Category != *categoryFilter {
			continue
		}
		if !w.g.Match(text) {
			continue
		}
		res.add(Match{
			PatternID: w.pattern.ID, PatternName: w.pattern.Name,
			MatchedText: text, Start: 0, End: len(text), Category: w.pattern.Category,
		})
	}

	for _, c := range b.cidr {
		res.PatternsChecked++
		if categoryFilter != nil && c.pattern.Category != *categoryFilter {
			continue
		}
		loc := c.regex.FindStringIndex(text)
		if loc == nil {
			continue
		}
		res.add(Match{
			PatternID: c.pattern.ID, PatternName: c.pattern.Name,
			MatchedText: text[loc[0]:loc[1]], Start: loc[0], End: loc[1], Category: c.pattern.Category,
		})
	}

	res.EvaluationTime = time.Since(start)
	return res
}
