package document

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// converterIndex is the entry document written by hwp5html --output <dir>.
const converterIndex = "index.xhtml"

type converterOutput struct {
	text      string
	tables    []Table
	imageSrcs []string // relative to the output dir, document order, deduplicated
}

// parseConverterOutput reads the XHTML rendition: paragraphs and headings
// give text, table/tr/td give grids, img@src gives image order.
func parseConverterOutput(dir string) (*converterOutput, error) {
	f, err := os.Open(filepath.Join(dir, converterIndex))
	if err != nil {
		return nil, fmt.Errorf("converter output: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse converter output: %w", err)
	}
	body := doc.Find("body")
	out := &converterOutput{tables: []Table{}}

	var lines []string
	body.Find("p, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		lines = append(lines, collapseSpaces(s.Text()))
	})
	if len(lines) == 0 {
		lines = append(lines, strings.TrimSpace(body.Text()))
	}
	out.text = strings.Join(lines, "\n")

	body.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var rows [][]string
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if !tr.Closest("table").IsSelection(tbl) {
				return
			}
			var row []string
			tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
				row = append(row, collapseSpaces(td.Text()))
			})
			rows = append(rows, row)
		})
		if len(rows) > 0 {
			out.tables = append(out.tables, Table(rows))
		}
	})

	seen := map[string]bool{}
	body.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}
		clean := path.Clean(strings.TrimPrefix(src, "./"))
		if clean == "." || path.IsAbs(clean) || strings.HasPrefix(clean, "..") || seen[clean] {
			return
		}
		seen[clean] = true
		out.imageSrcs = append(out.imageSrcs, clean)
	})
	return out, nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
