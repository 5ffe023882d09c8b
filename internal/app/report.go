package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/hyperifyio/speakloud/internal/pipeline"
)

const maxURLWidth = 60

// WriteReport prints reports as an aligned Markdown table. Widths are
// measured in terminal cells so wide characters stay aligned.
func WriteReport(w io.Writer, reports []pipeline.Report) error {
	rows := [][]string{{"URL", "Status", "Result"}}
	for _, r := range reports {
		result := r.DownloadLink
		if r.Status == pipeline.StatusFailed {
			result = r.Error
		}
		rows = append(rows, []string{runewidth.Truncate(r.URL, maxURLWidth, "…"), string(r.Status), result})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if n := runewidth.StringWidth(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	line := func(cells []string) string {
		var sb strings.Builder
		sb.WriteString("|")
		for i, c := range cells {
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(c, widths[i]))
			sb.WriteString(" |")
		}
		return sb.String()
	}
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}

	out := []string{line(rows[0]), line(sep)}
	for _, row := range rows[1:] {
		out = append(out, line(row))
	}
	_, err := fmt.Fprintf(w, "%s\n\n%d succeeded, %d failed\n",
		strings.Join(out, "\n"), len(reports)-pipeline.Failed(reports), pipeline.Failed(reports))
	return err
}
