package reader

import (
	"strings"
)

// MaxRepairPasses caps the repair loop on adversarial input.
const MaxRepairPasses = 50

// RepairHTML closes table cells that exports leave unterminated. Unclosed
// cells followed by another cell are closed until the text stops changing,
// then cells still open at a row or table boundary are closed. The result is
// stable under a second call.
func RepairHTML(data []byte) []byte {
	s := string(data)
	for i := 0; i < MaxRepairPasses; i++ {
		next := closeCells(s, false)
		if next == s {
			break
		}
		s = next
	}
	return []byte(closeCells(s, true))
}

// closeCells makes one pass over the tags of s. It inserts a closing tag before
// a cell that opens while another in the same row is still open, and when
// atBoundary is set, before a row or table tag that arrives with a cell open.
func closeCells(s string, atBoundary bool) string {
	var b strings.Builder
	b.Grow(len(s) + 64)

	open := "" // name of the open cell tag, "td" or "th"
	pos := 0
	for {
		lt := strings.IndexByte(s[pos:], '<')
		if lt < 0 {
			break
		}
		lt += pos
		name, closing, ok := tagName(s[lt:])
		if !ok {
			b.WriteString(s[pos : lt+1])
			pos = lt + 1
			continue
		}
		b.WriteString(s[pos:lt])

		switch {
		case (name == "td" || name == "th") && !closing:
			if open != "" {
				b.WriteString("</" + open + ">")
			}
			open = name
		case (name == "td" || name == "th") && closing:
			open = ""
		case name == "tr" || name == "table" || name == "tbody" || name == "thead":
			if atBoundary && open != "" {
				b.WriteString("</" + open + ">")
			}
			open = ""
		}

		end := strings.IndexByte(s[lt:], '>')
		if end < 0 {
			b.WriteString(s[lt:])
			pos = len(s)
			break
		}
		b.WriteString(s[lt : lt+end+1])
		pos = lt + end + 1
	}
	b.WriteString(s[pos:])
	return b.String()
}

// tagName parses the lower-cased element name at the start of s ("<td ...>").
func tagName(s string) (name string, closing bool, ok bool) {
	if len(s) < 2 || s[0] != '<' {
		return "", false, false
	}
	i := 1
	if s[i] == '/' {
		closing = true
		i++
	}
	start := i
	for i < len(s) && isTagNameByte(s[i]) {
		i++
	}
	if i == start {
		return "", false, false
	}
	return strings.ToLower(s[start:i]), closing, true
}

func isTagNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
