package document

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func readHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML %s: %w", path, err)
	}
	return htmlText(doc), nil
}

// htmlText flattens a report page to plain text. Tables become pipe-separated
// rows so line items keep their figures.
func htmlText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, head").Remove()

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows []string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, collapseSpaces(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
			}
		})
		table.ReplaceWithHtml("<pre>\n" + escapeHTML(strings.Join(rows, "\n")) + "\n</pre>")
	})

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, pre, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})

	var lines []string
	blank := false
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = collapseSpaces(line)
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
