package pattern

import (
	"strings"
	"time"

	"github.com/armon/go-radix"

	"github.com/riskcore/decisioncore/internal/decisionerr"
)

// altBackend indexes exact patterns in a radix tree (github.com/armon/go-radix),
// scanning a text by probing every suffix for the longest matching prefix —
// an alternative exact-match strategy to highPerfBackend's linear
// strings.Index scan, useful when the exact-pattern corpus is large enough
// that prefix-sharing pays off. Wildcard and CIDR patterns fall back to the
// shared regex conversion, same as highPerfBackend does for CIDR.
type altBackend struct {
	exactCS  *radix.Tree // case-sensitive patterns, keyed by original text
	exactCI  *radix.Tree // case-insensitive patterns, keyed lowercased
	wildcard []compiledEntry
	cidr     []compiledEntry
}

func newAltBackend() *altBackend { return &altBackend{} }

func (b *altBackend) Name() string { return "alt" }

func (b *altBackend) Compile(patterns []Pattern) error {
	exactCS, exactCI := radix.New(), radix.New()
	var wildcard, cidr []compiledEntry

	for _, p := range patterns {
		switch p.Kind {
		case KindExact:
			if p.CaseSensitive {
				exactCS.Insert(p.PatternText, p)
			} else {
				exactCI.Insert(strings.ToLower(p.PatternText), p)
			}
		case KindWildcard:
			re, err := ToRegex(p.PatternText, KindWildcard, p.CaseSensitive)
			if err != nil {
				return decisionerr.Wrap("pattern", decisionerr.PatternCompileErr,
					"compile failed for pattern "+p.Name, err)
			}
			wildcard = append(wildcard, compiledEntry{pattern: p, regex: re})
		case KindCIDR:
			re, err := cidrRegexFor(p)
			if err != nil {
				return err
			}
			cidr = append(cidr, compiledEntry{pattern: p, regex: re})
		}
	}

	b.exactCS, b.exactCI, b.wildcard, b.cidr = exactCS, exactCI, wildcard, cidr
	return nil
}

// probeExact scans every suffix of probe (the case-normalized text) for the
// longest matching prefix in tree, reporting match offsets against
// original, the unmodified source text.
func (b *altBackend) probeExact(tree *radix.Tree, probe, original string, categoryFilter *Category, res *Results) {
	for i := range probe {
		key, val, ok := tree.LongestPrefix(probe[i:])
		if !ok || key == "" {
			continue
		}
		p := val.(Pattern)
		if categoryFilter != nil && p.Category != *categoryFilter {
			continue
		}
		res.add(Match{
			PatternID: p.ID, PatternName: p.Name,
			MatchedText: original[i : i+len(key)], Start: i, End: i + len(key),
			Category: p.Category,
		})
	}
}

func (b *altBackend) MatchText(text string, categoryFilter *Category) Results {
	start := time.Now()
	res := Results{TextsProcessed: 1}

	if b.exactCS != nil {
		res.PatternsChecked += b.exactCS.Len()
		b.probeExact(b.exactCS, text, text, categoryFilter, &res)
	}
	if b.exactCI != nil {
		res.PatternsChecked += b.exactCI.Len()
		b.probeExact(b.exactCI, strings.ToLower(text), text, categoryFilter, &res)
	}

	for _, w := range b.wildcard {
		res.PatternsChecked++
		if categoryFilter != nil && w.pattern.Category != *categoryFilter {
			continue
		}
		loc := w.regex.FindStringIndex(text)
		if loc == nil {
			continue
		}
		res.add(Match{
			PatternID: w.pattern.ID, PatternName: w.pattern.Name,
			MatchedText: text[loc[0]:loc[1]], Start: loc[0], End: loc[1], Category: w.pattern.Category,
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
