package diagnostic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// contextLines is how many lines are shown around the span
const contextLines = 2

// minGutterWidth keeps short files aligned the same way as long ones
const minGutterWidth = 3

// sourceLines indexes a file by line so byte offsets can be resolved
type sourceLines struct {
	text   []string
	starts []int
}

func splitSource(source string) sourceLines {
	raw := strings.Split(source, "\n")
	// a trailing newline does not start another line
	if len(raw) > 1 && raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}

	sl := sourceLines{
		text:   make([]string, len(raw)),
		starts: make([]int, len(raw)),
	}
	offset := 0
	for i, l := range raw {
		sl.starts[i] = offset
		offset += len(l) + 1
		sl.text[i] = strings.TrimSuffix(l, "\r")
	}
	return sl
}

// lineOf returns the 0-based line index containing offset
func (sl sourceLines) lineOf(offset int) int {
	i := sort.Search(len(sl.starts), func(i int) bool { return sl.starts[i] > offset }) - 1
	if i < 0 {
		return 0
	}
	return i
}

// columns is the terminal width of s, counting a tab as one column
func columns(s string) int {
	return ansi.StringWidth(s) + strings.Count(s, "\t")
}

// padding is blank space as wide as prefix. Tabs are kept so the caret lines
// up however the terminal expands them.
func padding(prefix string) string {
	parts := strings.Split(prefix, "\t")
	for i, p := range parts {
		parts[i] = strings.Repeat(" ", ansi.StringWidth(p))
	}
	return strings.Join(parts, "\t")
}

// RenderFrame draws the lines around [start, end) with a caret underline
// beneath the span. Offsets are absolute byte offsets into source; they are
// clamped to the text. Up to two lines of context are shown on each side.
func RenderFrame(source string, start, end int) string {
	if source == "" {
		return ""
	}
	if start < 0 {
		start = 0
	}
	if start > len(source) {
		start = len(source)
	}
	if end < start {
		end = start
	}
	if end > len(source) {
		end = len(source)
	}

	sl := splitSource(source)
	first := sl.lineOf(start)
	last := first
	if end > start {
		last = sl.lineOf(end - 1)
	}

	from := max(first-contextLines, 0)
	to := min(last+contextLines, len(sl.text)-1)

	width := max(len(strconv.Itoa(to+1)), minGutterWidth)
	blank := strings.Repeat(" ", width)

	var b strings.Builder
	for i := from; i <= to; i++ {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%*d | %s", width, i+1, sl.text[i])

		if i < first || i > last {
			continue
		}
		lineStart := sl.starts[i]
		lineEnd := lineStart + len(sl.text[i])

		col := 0
		if i == first {
			col = min(start-lineStart, len(sl.text[i]))
		}
		stop := lineEnd
		if i == last && end < lineEnd {
			stop = end
		}
		text := sl.text[i]

		b.WriteByte('\n')
		b.WriteString(blank)
		b.WriteString(" | ")
		b.WriteString(padding(text[:col]))
		b.WriteString(strings.Repeat("^", max(columns(text[col:max(stop-lineStart, col)]), 1)))
	}
	return b.String()
}
