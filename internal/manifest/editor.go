package manifest

import "strings"

// StripSections removes every table block whose header names the target
// section: the section itself, its nested sub-tables, and its
// platform-conditioned variants under target.<spec>. All bytes outside the
// removed blocks are preserved exactly, so re-writing the original text is a
// perfect inverse.
//
// The manifest grammar is not parsed. A line opens a table block when its
// first non-whitespace byte is '['; the block runs to the next such line or
// end of text. A '[' anywhere else (comments, values, continuation lines)
// never opens a block. A header that cannot be classified (unterminated
// bracket or quote) is conservatively treated as not a match.
func StripSections(text, section string) string {
	var b strings.Builder
	b.Grow(len(text))

	pos := 0
	for pos < len(text) {
		lineEnd := endOfLine(text, pos)
		line := text[pos:lineEnd]

		if isHeaderLine(line) && headerMatches(line, section) {
			// Delete header through body: everything up to the next
			// header line, or end of text. Scanning resumes right
			// after the deleted span, so later matching blocks are
			// detected independently.
			cur := lineEnd
			for cur < len(text) {
				next := endOfLine(text, cur)
				if isHeaderLine(text[cur:next]) {
					break
				}
				cur = next
			}
			pos = cur
			continue
		}

		b.WriteString(line)
		pos = lineEnd
	}
	return b.String()
}

// endOfLine returns the offset one past the line's terminating '\n', or
// len(text) for the final unterminated line. '\n' is the sole terminator; a
// '\r' before it is ordinary line content and survives untouched.
func endOfLine(text string, pos int) int {
	if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(text)
}

// isHeaderLine reports whether every byte before the first '[' is blank.
func isHeaderLine(line string) bool {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ', '\t':
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// headerMatches classifies a header line against the target section name.
func headerMatches(line, section string) bool {
	path, ok := headerPath(line)
	if !ok {
		return false
	}
	segs, ok := splitPath(path)
	if !ok {
		return false
	}

	// [section] and [section.sub...]
	if unquote(segs[0]) == section {
		return true
	}
	// [target.<spec>.section] and its sub-tables. The sibling
	// [target.<spec>.<other>] blocks under the same spec never match.
	if len(segs) >= 3 && unquote(segs[0]) == "target" && unquote(segs[2]) == section {
		return true
	}
	return false
}

// headerPath extracts the dotted path between the header's brackets,
// honoring quoted segments. ok is false when the header cannot be
// classified.
func headerPath(line string) (string, bool) {
	open := strings.IndexByte(line, '[')
	if open < 0 {
		return "", false
	}
	i := open + 1
	for i < len(line) {
		switch line[i] {
		case ']':
			return line[open+1 : i], true
		case '\'', '"':
			quote := line[i]
			i++
			for i < len(line) && line[i] != quote {
				i++
			}
			if i >= len(line) {
				return "", false // unterminated quote
			}
		}
		i++
	}
	return "", false // unterminated header
}

// splitPath splits a dotted table path into segments, keeping quoted
// segments (which may themselves contain dots) intact.
func splitPath(path string) ([]string, bool) {
	var segs []string
	var cur strings.Builder
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '\'', '"':
			cur.WriteByte(c)
			i++
			for i < len(path) && path[i] != c {
				cur.WriteByte(path[i])
				i++
			}
			if i >= len(path) {
				return nil, false
			}
			cur.WriteByte(c)
		case '.':
			segs = append(segs, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	segs = append(segs, strings.TrimSpace(cur.String()))
	return segs, true
}

func unquote(seg string) string {
	if len(seg) >= 2 {
		if (seg[0] == '\'' && seg[len(seg)-1] == '\'') ||
			(seg[0] == '"' && seg[len(seg)-1] == '"') {
			return seg[1 : len(seg)-1]
		}
	}
	return seg
}
