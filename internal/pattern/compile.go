package pattern

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/riskcore/decisioncore/internal/decisionerr"
)

// octetRange matches any valid decimal IPv4 octet (0-255).
const octetRange = `(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])`

// ClassifyKind auto-detects a pattern line's syntax per §4.3: CIDR if it
// contains "/" and looks like a dotted quad or colon-delimited address,
// else wildcard if it contains "*", else exact.
func ClassifyKind(text string) Kind {
	if strings.Contains(text, "/") {
		host, _, ok := strings.Cut(text, "/")
		if ok && (looksLikeIPv4(host) || strings.Contains(host, ":")) {
			return KindCIDR
		}
	}
	if strings.Contains(text, "*") {
		return KindWildcard
	}
	return KindExact
}

func looksLikeIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

// ReadLines parses a line-oriented pattern source: trims whitespace,
// skips blank lines and lines whose first non-space character is '#'.
func ReadLines(r io.Reader) []string {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ToRegex compiles a classified pattern line into the equivalent
// regexp.Regexp per §4.3's literal conversion rules. The STD backend uses
// it for every kind, ALT for wildcard and CIDR patterns, and HIGH_PERF for
// CIDR patterns only. The regexes are unanchored, so they match anywhere
// in the text; HIGH_PERF's glob matcher for wildcards matches only the
// whole text, so wildcard results can differ between backends.
func ToRegex(text string, kind Kind, caseSensitive bool) (*regexp.Regexp, error) {
	var body string
	switch kind {
	case KindExact:
		body = regexp.QuoteMeta(text)
	case KindWildcard:
		body = wildcardToRegex(text)
	case KindCIDR:
		b, err := cidrToRegex(text)
		if err != nil {
			return nil, err
		}
		body = b
	default:
		return nil, fmt.Errorf("unknown pattern kind")
	}

	prefix := ""
	if !caseSensitive {
		prefix = "(?i)"
	}
	return regexp.Compile(prefix + body)
}

// wildcardToRegex converts '*' to "any sequence", '?' to "one char", and
// escapes every other regex metacharacter (§4.3).
func wildcardToRegex(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// cidrToRegex converts a CIDR literal into a regex matching the set of
// IPv4 addresses within the prefix, per §4.3's bucketed octet rule:
// prefix>=24 fixes the first three octets; 16-23 fixes the first two;
// 8-15 fixes the first one; below 8 matches any address (no octet is
// guaranteed fixed at that granularity). IPv6 CIDRs fall back to an exact
// match on the network's canonical string since §4.3 does not specify an
// octet-level IPv6 algorithm.
func cidrToRegex(text string) (string, error) {
	_, network, err := net.ParseCIDR(text)
	if err != nil {
		return "", decisionerr.Wrap("pattern", decisionerr.PatternCompileErr, "invalid CIDR: "+text, err)
	}
	ones, bits := network.Mask.Size()
	if ones < 0 || ones > bits {
		return "", decisionerr.New("pattern", decisionerr.PatternCompileErr, "prefix length out of range")
	}

	ip4 := network.IP.To4()
	if ip4 == nil {
		return regexp.QuoteMeta(network.String()), nil
	}
	if ones < 0 || ones > 32 {
		return "", decisionerr.New("pattern", decisionerr.PatternCompileErr, "prefix length outside [0,32]")
	}

	o := [4]int{int(ip4[0]), int(ip4[1]), int(ip4[2]), int(ip4[3])}

	switch {
	case ones >= 24:
		return fmt.Sprintf(`\b%d\.%d\.%d\.%s\b`, o[0], o[1], o[2], octetRange), nil
	case ones >= 16:
		return fmt.Sprintf(`\b%d\.%d\.%s\.%s\b`, o[0], o[1], octetRange, octetRange), nil
	case ones >= 8:
		return fmt.Sprintf(`\b%d\.%s\.%s\.%s\b`, o[0], octetRange, octetRange, octetRange), nil
	default:
		return fmt.Sprintf(`\b%s\.%s\.%s\.%s\b`, octetRange, octetRange, octetRange, octetRange), nil
	}
}
