// Package diff computes word and character level diffs between an original
// text and its correction, for highlighting corrections in chat.
package diff

import (
	"strings"
	"unicode"
)

type Type string

const (
	Equal  Type = "equal"
	Insert Type = "insert"
	Delete Type = "delete"
)

// Segment is a run of text that is unchanged, inserted or deleted.
type Segment struct {
	Type Type   `json:"type"`
	Text string `json:"text"`
}

// ComputeWordDiff diffs two strings word by word. Whitespace runs are kept as
// their own tokens so the segments reproduce the exact spacing.
func ComputeWordDiff(original, corrected string) []Segment {
	return compute(tokenize(original), tokenize(corrected))
}

// ComputeCharDiff diffs two strings rune by rune. Meant for short strings.
func ComputeCharDiff(original, corrected string) []Segment {
	return compute(splitRunes(original), splitRunes(corrected))
}

// Reconstruct joins the text of every segment whose type is in keep.
func Reconstruct(segs []Segment, keep ...Type) string {
	var b strings.Builder
	for _, s := range segs {
		for _, k := range keep {
			if s.Type == k {
				b.WriteString(s.Text)
				break
			}
		}
	}
	return b.String()
}

func compute(a, b []string) []Segment {
	return build(a, b, lcsTable(a, b))
}

// tokenize splits text into alternating word and whitespace tokens.
func tokenize(text string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, text[start:i])
			start = i
			inSpace = space
		}
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

func splitRunes(text string) []string {
	tokens := make([]string, 0, len(text))
	for _, r := range text {
		tokens = append(tokens, string(r))
	}
	return tokens
}

func same(a, b string) bool {
	return strings.ToLower(a) == strings.ToLower(b)
}

// lcsTable returns the (m+1)x(n+1) LCS length table.
func lcsTable(a, b []string) [][]int {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if same(a[i-1], b[j-1]) {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}
	return dp
}

type run struct {
	typ   Type
	words []string
}

// build walks the table back from (m,n). On a tie it prefers insert over
// delete; fixtures depend on that order.
func build(a, b []string, dp [][]int) []Segment {
	var runs []run
	push := func(t Type, w string) {
		if n := len(runs); n > 0 && runs[n-1].typ == t {
			runs[n-1].words = append(runs[n-1].words, w)
			return
		}
		runs = append(runs, run{typ: t, words: []string{w}})
	}

	i, j := len(a), len(b)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && same(a[i-1], b[j-1]):
			push(Equal, b[j-1])
			i--
			j--
		case j > 0 && (i == 0 || dp[i][j-1] >= dp[i-1][j]):
			push(Insert, b[j-1])
			j--
		default:
			push(Delete, a[i-1])
			i--
		}
	}

	segs := make([]Segment, 0, len(runs))
	for k := len(runs) - 1; k >= 0; k-- {
		words := runs[k].words
		var sb strings.Builder
		for w := len(words) - 1; w >= 0; w-- {
			sb.WriteString(words[w])
		}
		segs = append(segs, Segment{Type: runs[k].typ, Text: sb.String()})
	}
	return segs
}
