package sequence

import (
	"regexp"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TagNone is reported when no filename pattern meets the acceptance rule.
const TagNone = "none"

// Pattern pairs a filename-relationship regex with a stable tag. The regex
// must expose exactly two capture groups: the shared base token and the
// ordering token.
type Pattern struct {
	Tag string
	re  *regexp.Regexp
}

// patterns is the prioritized list, most specific first. The first pattern
// that passes the acceptance rule wins.
var patterns = []Pattern{
	{Tag: "recto-verso", re: regexp.MustCompile(`^(.*?)[_-]?(\d+[rv])\.[^.]+$`)},
	{Tag: "page-number", re: regexp.MustCompile(`^([A-Za-z][A-Za-z ]*?)[_-](\d+)\.[^.]+$`)},
	{Tag: "frame-counter", re: regexp.MustCompile(`(?i)^(.*?(?:img|scan|frame|dsc))[_-]?(\d+)\.[^.]+$`)},
	{Tag: "trailing-number", re: regexp.MustCompile(`^(.*?)(\d+)\.[^.]+$`)},
}

// Result is the outcome of sequence detection for one leaf.
type Result struct {
	Tag     string
	Ordered []string
}

// Detect applies the prioritized pattern list to names. A pattern is accepted
// only when it matches more than half the names and all matches share exactly
// one distinct base token, which rejects accidental partial matches. Accepted
// matches are ordered by natural comparison of the captured token, with
// non-matching names appended in natural name order. Without an accepted
// pattern, all names are natural-sorted and the tag is TagNone.
//
// Detect is pure: the same name set always yields the same result.
func Detect(names []string) Result {
	input := append([]string(nil), names...)

	for _, pattern := range patterns {
		type match struct {
			name  string
			token string
		}
		var matches []match
		var rest []string
		bases := make(map[string]struct{})

		for _, name := range input {
			groups := pattern.re.FindStringSubmatch(name)
			if groups == nil {
				rest = append(rest, name)
				continue
			}
			bases[groups[1]] = struct{}{}
			matches = append(matches, match{name: name, token: groups[2]})
		}

		if len(matches)*2 <= len(input) || len(bases) != 1 {
			continue
		}

		cmp := naturalCollator()
		sort.SliceStable(matches, func(i, j int) bool {
			if c := cmp.CompareString(matches[i].token, matches[j].token); c != 0 {
				return c < 0
			}
			return cmp.CompareString(matches[i].name, matches[j].name) < 0
		})
		sortNatural(rest)

		ordered := make([]string, 0, len(input))
		for _, m := range matches {
			ordered = append(ordered, m.name)
		}
		ordered = append(ordered, rest...)
		return Result{Tag: pattern.Tag, Ordered: ordered}
	}

	sortNatural(input)
	return Result{Tag: TagNone, Ordered: input}
}

// SortNatural orders names with numeric-aware comparison ("page_2" before
// "page_10").
func SortNatural(names []string) []string {
	out := append([]string(nil), names...)
	sortNatural(out)
	return out
}

func sortNatural(names []string) {
	cmp := naturalCollator()
	sort.SliceStable(names, func(i, j int) bool {
		return cmp.CompareString(names[i], names[j]) < 0
	})
}

func naturalCollator() *collate.Collator {
	return collate.New(language.Und, collate.Numeric)
}
