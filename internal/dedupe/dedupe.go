// Package dedupe removes repeated paragraphs left behind by paragraph-level
// extraction, such as navigation or boilerplate lines emitted once per block.
package dedupe

import "strings"

// Paragraphs keeps the first occurrence of every distinct non-empty line,
// in encounter order, and joins the survivors with a blank line. Lines are
// compared after trimming surrounding whitespace.
func Paragraphs(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	seen := make(map[string]struct{}, len(lines))
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n\n")
}
