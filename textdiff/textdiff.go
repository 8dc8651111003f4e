// Package textdiff compares two text snapshots of the same page: a
// character-level change percentage, sentence-level added/removed content,
// and a caller-applied significance threshold.
package textdiff

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// DefaultThreshold is the change percentage at or above which a diff is
// considered significant unless the caller configures otherwise.
const DefaultThreshold = 5.0

// maxSentences caps added/removed lists to keep stored diffs readable.
const maxSentences = 50

// Result describes what changed between an older and a newer snapshot.
type Result struct {
	ChangePct   float64 `json:"change_pct"`
	AddedText   string  `json:"added_text"`
	RemovedText string  `json:"removed_text"`
	// IsSignificant is left false by Compute; the orchestrator applies its
	// own threshold per page so thresholds can vary by context.
	IsSignificant bool `json:"is_significant"`
}

// Compute compares two clean text strings. The change percentage is a
// character-level similarity ratio (2M/T over greedy matching blocks, no
// junk elision); added/removed are sentence-level set differences in
// source order, capped at 50 sentences each.
func Compute(oldText, newText string) Result {
	if oldText == "" && newText == "" {
		return Result{}
	}

	ratio := Ratio(oldText, newText)
	changePct := math.Round((1.0-ratio)*100*100) / 100

	oldSentences := splitSentences(oldText)
	newSentences := splitSentences(newText)

	oldSet := make(map[string]struct{}, len(oldSentences))
	for _, s := range oldSentences {
		oldSet[s] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newSentences))
	for _, s := range newSentences {
		newSet[s] = struct{}{}
	}

	var added, removed []string
	for _, s := range newSentences {
		if _, ok := oldSet[s]; !ok {
			added = append(added, s)
		}
	}
	for _, s := range oldSentences {
		if _, ok := newSet[s]; !ok {
			removed = append(removed, s)
		}
	}

	if len(added) > maxSentences {
		added = added[:maxSentences]
	}
	if len(removed) > maxSentences {
		removed = removed[:maxSentences]
	}

	return Result{
		ChangePct:   changePct,
		AddedText:   strings.Join(added, "\n"),
		RemovedText: strings.Join(removed, "\n"),
	}
}

// IsSignificant reports whether a change percentage meets the threshold.
func IsSignificant(changePct, thresholdPct float64) bool {
	return changePct >= thresholdPct
}

// splitSentences splits after . ! ? followed by whitespace and drops empty
// fragments.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// ── Similarity ratio ──────────────────────────────────────────────────────

// Ratio returns 2M/T where M is the total size of the greedy longest
// matching blocks between the two strings' character sequences and T is
// the sum of their lengths. Every character counts equally: there is no
// junk heuristic. Identical strings give 1.0, disjoint strings 0.0.
func Ratio(a, b string) float64 {
	as := strings.Split(a, "")
	bs := strings.Split(b, "")
	if len(as)+len(bs) == 0 {
		return 1.0
	}
	matches := 0
	for _, m := range matchingBlocks(as, bs) {
		matches += m.Size
	}
	return 2.0 * float64(matches) / float64(len(as)+len(bs))
}

type match struct {
	A, B, Size int
}

// findLongestMatch finds the longest block of equal elements in
// a[alo:ahi] and b[blo:bhi], preferring the earliest such block.
func findLongestMatch(a, b []string, b2j map[string][]int, alo, ahi, blo, bhi int) match {
	besti, bestj, bestsize := alo, blo, 0
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newj2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return match{besti, bestj, bestsize}
}

// matchingBlocks returns the non-overlapping matching blocks between a and
// b, in order, found by recursively applying findLongestMatch to the
// regions before and after each longest match.
func matchingBlocks(a, b []string) []match {
	b2j := make(map[string][]int, len(b))
	for j, s := range b {
		b2j[s] = append(b2j[s], j)
	}

	type region struct{ alo, ahi, blo, bhi int }
	queue := []region{{0, len(a), 0, len(b)}}
	var matched []match
	for len(queue) > 0 {
		r := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		m := findLongestMatch(a, b, b2j, r.alo, r.ahi, r.blo, r.bhi)
		if m.Size == 0 {
			continue
		}
		matched = append(matched, m)
		if r.alo < m.A && r.blo < m.B {
			queue = append(queue, region{r.alo, m.A, r.blo, m.B})
		}
		if m.A+m.Size < r.ahi && m.B+m.Size < r.bhi {
			queue = append(queue, region{m.A + m.Size, r.ahi, m.B + m.Size, r.bhi})
		}
	}

	sortMatches(matched)

	// Collapse adjacent blocks so each block's size counts once.
	var blocks []match
	i1, j1, k1 := 0, 0, 0
	for _, m := range matched {
		if i1+k1 == m.A && j1+k1 == m.B {
			k1 += m.Size
			continue
		}
		if k1 > 0 {
			blocks = append(blocks, match{i1, j1, k1})
		}
		i1, j1, k1 = m.A, m.B, m.Size
	}
	if k1 > 0 {
		blocks = append(blocks, match{i1, j1, k1})
	}
	blocks = append(blocks, match{len(a), len(b), 0})
	return blocks
}

func sortMatches(ms []match) {
	// Insertion sort: block lists are short relative to text size and
	// nearly ordered already.
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && (ms[j].A < ms[j-1].A || (ms[j].A == ms[j-1].A && ms[j].B < ms[j-1].B)); j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}

// ── Unified diff for display/logging ──────────────────────────────────────

type opcode struct {
	Tag            string
	I1, I2, J1, J2 int
}

func opcodes(a, b []string) []opcode {
	var ops []opcode
	i, j := 0, 0
	for _, m := range matchingBlocks(a, b) {
		tag := ""
		switch {
		case i < m.A && j < m.B:
			tag = "replace"
		case i < m.A:
			tag = "delete"
		case j < m.B:
			tag = "insert"
		}
		if tag != "" {
			ops = append(ops, opcode{tag, i, m.A, j, m.B})
		}
		i, j = m.A+m.Size, m.B+m.Size
		if m.Size > 0 {
			ops = append(ops, opcode{"equal", m.A, i, m.B, j})
		}
	}
	return ops
}

// Unified renders a unified line diff between two texts for logs and
// manual inspection. contextLines controls how many unchanged lines
// surround each hunk.
func Unified(oldText, newText string, contextLines int) string {
	a := strings.SplitAfter(oldText, "\n")
	b := strings.SplitAfter(newText, "\n")
	ops := opcodes(a, b)

	// Trim equal runs down to the context window and split into hunks.
	var hunks [][]opcode
	var current []opcode
	for idx, op := range ops {
		if op.Tag == "equal" {
			if len(current) == 0 {
				// Leading context only.
				if op.I2-op.I1 > contextLines {
					op.I1 = op.I2 - contextLines
					op.J1 = op.J2 - contextLines
				}
				current = append(current, op)
				continue
			}
			if op.I2-op.I1 > 2*contextLines && idx != len(ops)-1 {
				head := op
				head.I2 = head.I1 + contextLines
				head.J2 = head.J1 + contextLines
				current = append(current, head)
				hunks = append(hunks, current)

				tail := op
				tail.I1 = tail.I2 - contextLines
				tail.J1 = tail.J2 - contextLines
				current = []opcode{tail}
				continue
			}
			if idx == len(ops)-1 && op.I2-op.I1 > contextLines {
				op.I2 = op.I1 + contextLines
				op.J2 = op.J1 + contextLines
			}
		}
		current = append(current, op)
	}
	if hasChange(current) {
		hunks = append(hunks, current)
	}
	if len(hunks) == 0 {
		return ""
	}

	var out strings.Builder
	out.WriteString("--- old\n+++ new\n")
	for _, hunk := range hunks {
		first, last := hunk[0], hunk[len(hunk)-1]
		fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n",
			first.I1+1, last.I2-first.I1, first.J1+1, last.J2-first.J1)
		for _, op := range hunk {
			switch op.Tag {
			case "equal":
				writeLines(&out, " ", a[op.I1:op.I2])
			case "delete":
				writeLines(&out, "-", a[op.I1:op.I2])
			case "insert":
				writeLines(&out, "+", b[op.J1:op.J2])
			case "replace":
				writeLines(&out, "-", a[op.I1:op.I2])
				writeLines(&out, "+", b[op.J1:op.J2])
			}
		}
	}
	return out.String()
}

func hasChange(ops []opcode) bool {
	for _, op := range ops {
		if op.Tag != "equal" {
			return true
		}
	}
	return false
}

func writeLines(out *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		out.WriteString(prefix)
		out.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			out.WriteString("\n")
		}
	}
}
