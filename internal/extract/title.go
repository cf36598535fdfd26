package extract

import (
	"regexp"
	"strings"
)

// TitleParts is the structured read of a free-text listing title. Company
// and Location stay nil when no heuristic matches; the caller treats that as
// soft degradation, never as an error.
type TitleParts struct {
	Title    string
	Company  *string
	Location *string
}

// companyMatcher reports the company segment and the remaining title text.
type companyMatcher func(s string) (company, rest string, ok bool)

// locationMatcher reports the location and the (possibly trimmed) title text.
type locationMatcher func(s string) (location, rest string, ok bool)

// Matchers run in order; the first hit wins. Each is independently testable.
var companyMatchers = []companyMatcher{
	matchHiringVerb,
	matchDashSeparator,
	matchColonSeparator,
}

var locationMatchers = []locationMatcher{
	matchParenLocation,
	matchKnownLocation,
}

// hiringVerbs are tried longest-phrase-first so "is hiring" beats "hiring".
var hiringVerbs = []string{
	"is looking for",
	"is seeking",
	"is hiring",
	"hiring",
	"seeks",
	"wants",
}

var knownLocations = regexp.MustCompile(`(?i)\b(Remote|San Francisco|SF|New York|NYC|London|Berlin|Amsterdam|Toronto|Vancouver|Austin|Seattle|Boston)\b`)

// trailing "(...)" segment, e.g. "Backend Engineer (Remote)"
var parenTail = regexp.MustCompile(`\(([^()]+)\)\s*$`)

// ParseTitle splits a listing title of the usual shape
// "<Company> is hiring <Role> (<Location>)" into its parts. Pure and
// deterministic: the same text always yields the same result.
func ParseTitle(text string) TitleParts {
	original := CleanText(text)
	rest := original

	var company, location *string

	for _, m := range companyMatchers {
		if c, r, ok := m(rest); ok {
			company = &c
			rest = r
			break
		}
	}

	for _, m := range locationMatchers {
		if l, r, ok := m(rest); ok {
			location = &l
			rest = r
			break
		}
	}

	title := CleanText(rest)
	if title == "" {
		title = original
	}

	return TitleParts{Title: title, Company: company, Location: location}
}

func matchHiringVerb(s string) (string, string, bool) {
	low := strings.ToLower(s)
	for _, verb := range hiringVerbs {
		i := strings.Index(low, " "+verb+" ")
		if i <= 0 {
			continue
		}
		company := CleanText(s[:i])
		rest := CleanText(s[i+len(verb)+2:])
		if company == "" || rest == "" {
			continue
		}
		return company, rest, true
	}
	return "", "", false
}

func matchDashSeparator(s string) (string, string, bool) {
	return splitOnce(s, " - ")
}

func matchColonSeparator(s string) (string, string, bool) {
	return splitOnce(s, ": ")
}

func splitOnce(s, sep string) (string, string, bool) {
	i := strings.Index(s, sep)
	if i <= 0 {
		return "", "", false
	}
	company := CleanText(s[:i])
	rest := CleanText(s[i+len(sep):])
	if company == "" || rest == "" {
		return "", "", false
	}
	return company, rest, true
}

// matchParenLocation strips a trailing parenthesized segment and uses it as
// the location, so "Backend Engineer (Remote)" cleans to "Backend Engineer".
func matchParenLocation(s string) (string, string, bool) {
	m := parenTail.FindStringSubmatchIndex(s)
	if m == nil {
		return "", "", false
	}
	loc := CleanText(s[m[2]:m[3]])
	if loc == "" {
		return "", "", false
	}
	rest := CleanText(s[:m[0]])
	if rest == "" {
		// a title that is nothing but "(Remote)" keeps its text
		rest = s
	}
	return loc, rest, true
}

// matchKnownLocation recognizes a well-known location keyword anywhere in the
// text. The keyword stays in the title; inline mentions read better uncut.
func matchKnownLocation(s string) (string, string, bool) {
	m := knownLocations.FindString(s)
	if m == "" {
		return "", "", false
	}
	return m, s, true
}
