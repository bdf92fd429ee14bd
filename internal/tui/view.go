package tui

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	highlightStyle = lipgloss.NewStyle().Reverse(true)
)

// applyHighlight renders text with every case-insensitive occurrence of
// the terms emphasized. Overlapping and adjacent matches merge into one
// highlighted span. Text without matches is returned unchanged.
func applyHighlight(text string, terms []string) string {
	if text == "" || len(terms) == 0 {
		return text
	}

	// Case-fold once, tracking which original byte each folded byte
	// came from. Folding can change rune widths, so offsets are mapped,
	// never assumed.
	var folded strings.Builder
	offsets := make([]int, 0, len(text)+1)
	for i, r := range text {
		lr := unicode.ToLower(r)
		for j := 0; j < utf8.RuneLen(lr); j++ {
			offsets = append(offsets, i)
		}
		folded.WriteRune(lr)
	}
	offsets = append(offsets, len(text))
	lower := folded.String()

	type span struct{ start, end int }
	var spans []span
	for _, term := range terms {
		t := strings.ToLower(term)
		if t == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(lower[from:], t)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, span{start, start + len(t)})
			from = start + 1
		}
	}
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	var out strings.Builder
	prev := 0
	for _, s := range merged {
		start, end := offsets[s.start], offsets[s.end]
		out.WriteString(text[prev:start])
		out.WriteString(highlightStyle.Render(text[start:end]))
		prev = end
	}
	out.WriteString(text[prev:])
	return out.String()
}
