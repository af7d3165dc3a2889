// internal/composer/cleanup.go
package composer

import (
	"regexp"
	"strings"
)

var (
	blankLinesRE  = regexp.MustCompile(`\n\s*\n\s*\n+`)
	exclaimRE     = regexp.MustCompile(`[!]{3,}`)
	questionRE    = regexp.MustCompile(`[?]{3,}`)
	ellipsisRE    = regexp.MustCompile(`\.{4,}`)
	multiSpaceRE  = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforeRE = regexp.MustCompile(` +([.,!?])`)
)

// Cleanup normalizes generated text so platform forms accept it: excess
// blank lines, runaway punctuation, repeated emoji and stray whitespace
// are all collapsed. It never changes the words themselves.
func Cleanup(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankLinesRE.ReplaceAllString(s, "\n\n")
	s = exclaimRE.ReplaceAllString(s, "!!")
	s = questionRE.ReplaceAllString(s, "??")
	s = ellipsisRE.ReplaceAllString(s, "...")
	s = collapseRepeatedRunes(s, 2)
	s = multiSpaceRE.ReplaceAllString(s, " ")
	s = spaceBeforeRE.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// collapseRepeatedRunes caps runs of the same non-ASCII rune at max.
// Models pad positive replies with long emoji runs; two is plenty.
func collapseRepeatedRunes(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	count := 0
	for _, r := range s {
		if r == prev && r > 0x7F {
			count++
			if count > max {
				continue
			}
		} else {
			prev = r
			count = 1
		}
		b.WriteRune(r)
	}
	return b.String()
}
