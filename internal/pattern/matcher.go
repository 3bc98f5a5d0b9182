package pattern

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riskcore/decisioncore/internal/decision"
	"github.com/riskcore/decisioncore/internal/decisionerr"
)

// Preference selects which backend strategy to compile against (§9).
type Preference int

const (
	AUTO Preference = iota
	HighPerf
	Std
	Alt
)

type backend interface {
	Name() string
	Compile(patterns []Pattern) error
	MatchText(text string, categoryFilter *Category) Results
}

// Matcher owns one compiled matcher database and its lifecycle state
// machine (§4.3): Uninit → Loaded → Compiled → Ready; Ready → Loaded on
// AddPattern; any → Errored on failure; Errored is recoverable by
// re-loading. Matching is permitted only in Compiled/Ready.
type Matcher struct {
	mu      sync.RWMutex
	state   State
	pending []Pattern
	active  backend
	nextID  uint32

	matchCount   int64
	categoryHits map[Category]int64
	totalMatchNs int64
	lastErr      error
}

// New constructs an empty matcher, per the §4.3 lifecycle's starting
// state.
func New() *Matcher {
	return &Matcher{state: Uninit, categoryHits: map[Category]int64{}}
}

// LoadFiles reads blacklist and whitelist pattern files (§6) and stages
// their parsed, classified, auto-ID'd patterns for compilation.
func (m *Matcher) LoadFiles(blacklistPath, whitelistPath string) error {
	patterns, err := loadPatternFile(blacklistPath, Blacklist, &m.nextID)
	if err != nil {
		return m.fail(err)
	}
	wl, err := loadPatternFile(whitelistPath, Whitelist, &m.nextID)
	if err != nil {
		return m.fail(err)
	}
	patterns = append(patterns, wl...)
	return m.Load(patterns)
}

func loadPatternFile(path string, category Category, nextID *uint32) ([]Pattern, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, decisionerr.Wrap("pattern", decisionerr.PatternCompileErr, "cannot open "+path, err)
	}
	defer f.Close()
	return parsePatternSource(f, category, nextID)
}

func parsePatternSource(r io.Reader, category Category, nextID *uint32) ([]Pattern, error) {
	lines := ReadLines(r)
	patterns := make([]Pattern, 0, len(lines))
	for _, line := range lines {
		kind := ClassifyKind(line)
		id := atomic.AddUint32(nextID, 1)
		patterns = append(patterns, Pattern{
			ID: id, Name: fmt.Sprintf("%s-%d", category, id), PatternText: line,
			Category: category, IsRegex: kind != KindExact, CaseSensitive: true,
			Kind: kind,
		})
	}
	return patterns, nil
}

// Load stages patterns (state → Loaded) without compiling them yet.
func (m *Matcher) Load(patterns []Pattern) error {
	if err := validateUniqueIDs(patterns); err != nil {
		return m.fail(err)
	}
	m.mu.Lock()
	m.pending = patterns
	m.state = Loaded
	m.mu.Unlock()
	return m.Compile()
}

func validateUniqueIDs(patterns []Pattern) error {
	seen := map[uint32]bool{}
	for _, p := range patterns {
		if seen[p.ID] {
			return decisionerr.New("pattern", decisionerr.PatternCompileErr,
				fmt.Sprintf("duplicate pattern id %d", p.ID))
		}
		seen[p.ID] = true
	}
	return nil
}

// Compile builds the active backend from the staged patterns (state →
// Compiled → Ready). A compile failure is fatal to this attempt only: the
// previously Ready database, if any, is left in place (§4.3).
func (m *Matcher) Compile() error {
	return m.CompileWith(AUTO)
}

// CompileWith compiles using an explicit backend preference.
func (m *Matcher) CompileWith(pref Preference) error {
	m.mu.RLock()
	patterns := m.pending
	prior := m.active
	m.mu.RUnlock()

	b := selectBackend(pref)
	m.mu.Lock()
	m.state = Compiled
	m.mu.Unlock()

	if err := b.Compile(patterns); err != nil {
		m.mu.Lock()
		m.state = Errored
		m.lastErr = err
		m.active = prior // previous Ready database retained
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.active = b
	m.state = Ready
	m.lastErr = nil
	m.mu.Unlock()
	return nil
}

// selectBackend resolves a Preference to a concrete backend. AUTO prefers
// the fastest available backend, which in this implementation is always
// highPerfBackend since it is never conditionally unavailable.
func selectBackend(pref Preference) backend {
	switch pref {
	case HighPerf:
		return newHighPerfBackend()
	case Std:
		return newStdBackend()
	case Alt:
		return newAltBackend()
	default:
		return newHighPerfBackend()
	}
}

// AddPattern appends a pattern and forces Ready → Loaded, requiring a
// subsequent Compile (§4.3).
func (m *Matcher) AddPattern(p Pattern) error {
	m.mu.Lock()
	if p.ID == 0 {
		p.ID = atomic.AddUint32(&m.nextID, 1)
	}
	m.pending = append(m.pending, p)
	m.state = Loaded
	m.mu.Unlock()
	return m.Compile()
}

func (m *Matcher) fail(err error) error {
	m.mu.Lock()
	m.state = Errored
	m.lastErr = err
	m.mu.Unlock()
	return err
}

// State returns the current lifecycle state.
func (m *Matcher) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError returns the most recent compile/load failure, if any.
func (m *Matcher) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// MatchText scans one text field against the active database. Matching is
// gated on active being non-nil, not on the lifecycle state: a failed
// recompile moves state to Errored while CompileWith deliberately retains
// the previously Ready backend in active (§4.3's "leave the prior
// database in place"), and that retained backend must keep serving
// matches — State()/LastError() remain the introspection surface for the
// failed compile. Per-text matching errors are never surfaced as decision
// errors (§7) — this function cannot itself error; backend compile
// errors already prevented a broken database from becoming active.
func (m *Matcher) MatchText(text string, categoryFilter *Category) Results {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()

	if active == nil {
		return Results{}
	}
	res := active.MatchText(text, categoryFilter)
	atomic.AddInt64(&m.matchCount, int64(len(res.All)))
	atomic.AddInt64(&m.totalMatchNs, res.EvaluationTime.Nanoseconds())
	m.mu.Lock()
	for _, mm := range res.All {
		m.categoryHits[mm.Category]++
	}
	m.mu.Unlock()
	return res
}

// MatchBatch scans several texts and merges the results.
func (m *Matcher) MatchBatch(texts []string, categoryFilter *Category) Results {
	var out Results
	for _, t := range texts {
		merge(&out, m.MatchText(t, categoryFilter))
	}
	return out
}

// MatchTransaction scans the text-bearing fields of a request (§4.3),
// merging their results and returning whether any blacklist hit landed on
// ip_address — the signal the orchestrator feeds back into the rule
// context's ip_blacklist_match variable.
func (m *Matcher) MatchTransaction(req *decision.Request, categoryFilter *Category) (Results, bool) {
	fields := req.TextFields()
	var out Results
	ipBlacklistHit := false
	for field, text := range fields {
		if text == "" {
			continue
		}
		res := m.MatchText(text, categoryFilter)
		merge(&out, res)
		if field == "ip_address" && len(res.BlacklistOnly) > 0 {
			ipBlacklistHit = true
		}
	}
	return out, ipBlacklistHit
}

// Stats is the statistics surface of §4.3.
type Stats struct {
	MatchCount    int64
	TotalMatchNs  int64
	ActiveBackend string
	CategoryHits  map[Category]int64
}

// Stats returns a snapshot of match counters.
func (m *Matcher) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name := ""
	if m.active != nil {
		name = m.active.Name()
	}
	hits := make(map[Category]int64, len(m.categoryHits))
	for k, v := range m.categoryHits {
		hits[k] = v
	}
	return Stats{
		MatchCount:    atomic.LoadInt64(&m.matchCount),
		TotalMatchNs:  atomic.LoadInt64(&m.totalMatchNs),
		ActiveBackend: name,
		CategoryHits:  hits,
	}
}

// ModTime reports the newer of the two source files' modification times,
// for internal/reload's poll loop.
func ModTime(blacklistPath, whitelistPath string) (time.Time, error) {
	var newest time.Time
	for _, p := range []string{blacklistPath, whitelistPath} {
		if p == "" {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			return time.Time{}, err
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
	}
	return newest, nil
}
