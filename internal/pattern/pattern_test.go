package pattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKind(t *testing.T) {
	assert.Equal(t, KindCIDR, ClassifyKind("10.0.0.0/24"))
	assert.Equal(t, KindWildcard, ClassifyKind("*.evil.com"))
	assert.Equal(t, KindExact, ClassifyKind("8.8.8.8"))
}

func TestReadLinesSkipsCommentsAndBlank(t *testing.T) {
	lines := ReadLines(strings.NewReader("# comment\n\n  10.0.0.1  \n*.bad.com\n"))
	assert.Equal(t, []string{"10.0.0.1", "*.bad.com"}, lines)
}

func newTestMatcher(t *testing.T, pref Preference) *Matcher {
	t.Helper()
	m := New()
	patterns := []Pattern{
		{ID: 1, Name: "bl-exact", PatternText: "193.0.2.55", Category: Blacklist, Kind: KindExact, CaseSensitive: true},
		{ID: 2, Name: "bl-wild", PatternText: "*badagent*", Category: Blacklist, Kind: KindWildcard, CaseSensitive: true},
		{ID: 3, Name: "bl-cidr", PatternText: "10.0.0.0/24", Category: Blacklist, Kind: KindCIDR, CaseSensitive: true},
		{ID: 4, Name: "wl-exact", PatternText: "trusted-merchant", Category: Whitelist, Kind: KindExact, CaseSensitive: true},
	}
	require.NoError(t, m.Load(patterns))
	require.NoError(t, m.CompileWith(pref))
	return m
}

func TestMatcherExactHit(t *testing.T) {
	for _, pref := range []Preference{Std, HighPerf, Alt} {
		m := newTestMatcher(t, pref)
		res := m.MatchText("193.0.2.55", nil)
		require.NotEmpty(t, res.All, "backend %v", pref)
		assert.Equal(t, "193.0.2.55", res.All[0].MatchedText)
	}
}

func TestMatcherWildcardHit(t *testing.T) {
	for _, pref := range []Preference{Std, HighPerf, Alt} {
		m := newTestMatcher(t, pref)
		res := m.MatchText("totally badagent string", nil)
		require.NotEmpty(t, res.All, "backend %v", pref)
	}
}

func TestMatcherCIDRHit(t *testing.T) {
	for _, pref := range []Preference{Std, HighPerf, Alt} {
		m := newTestMatcher(t, pref)
		res := m.MatchText("request from 10.0.0.42 observed", nil)
		require.NotEmpty(t, res.All, "backend %v", pref)
	}
}

func TestMatcherCategoryFilter(t *testing.T) {
	m := newTestMatcher(t, Std)
	wl := Whitelist
	res := m.MatchText("trusted-merchant seen", &wl)
	require.Len(t, res.All, 1)
	assert.Equal(t, Whitelist, res.All[0].Category)
}

func TestCompileFailureRetainsPriorReadyDatabase(t *testing.T) {
	m := New()
	require.NoError(t, m.Load([]Pattern{
		{ID: 1, Name: "ok", PatternText: "foo", Category: Blacklist, Kind: KindExact, CaseSensitive: true},
	}))
	require.Equal(t, Ready, m.State())

	// Stage a broken CIDR pattern and recompile; the prior Ready database
	// must remain queryable.
	m.mu.Lock()
	m.pending = []Pattern{{ID: 2, Name: "bad", PatternText: "not-a-cidr/99", Category: Blacklist, Kind: KindCIDR}}
	m.mu.Unlock()

	err := m.Compile()
	require.Error(t, err)
	assert.Equal(t, Errored, m.State())

	res := m.MatchText("foo bar", nil)
	require.NotEmpty(t, res.All)
}

func TestScoreFlooredAtZero(t *testing.T) {
	r := Results{WhitelistOnly: make([]Match, 3)}
	assert.Equal(t, 0.0, r.Score())
}
