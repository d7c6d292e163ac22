package export

import (
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
)

// Markdown renders the document text, tables and metadata as GitHub flavored
// Markdown.
func (s *Service) Markdown(doc document.ProcessedDocument) (string, error) {
	out, err := HTMLToMarkdown(documentHTML(doc))
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return out, nil
}

// HTMLToMarkdown converts an HTML fragment with GFM tables enabled.
func HTMLToMarkdown(fragment string) (string, error) {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	out, err := conv.ConvertString(fragment)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out) + "\n", nil
}

func documentHTML(doc document.ProcessedDocument) string {
	var b strings.Builder
	title := doc.Metadata[document.MetaTitle]
	if title == "" {
		title = doc.Metadata[document.MetaFilename]
	}
	if title != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	}

	var meta []string
	for _, k := range []string{document.MetaAuthor, document.MetaCreated, document.MetaFileType, document.MetaPageCount} {
		if v := doc.Metadata[k]; v != "" {
			meta = append(meta, fmt.Sprintf("<li><strong>%s</strong>: %s</li>", k, html.EscapeString(v)))
		}
	}
	if len(meta) > 0 {
		b.WriteString("<ul>" + strings.Join(meta, "") + "</ul>\n")
	}

	for _, para := range strings.Split(doc.Text, "\n\n") {
		if para = strings.TrimSpace(para); para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, l := range lines {
			lines[i] = html.EscapeString(l)
		}
		b.WriteString("<p>" + strings.Join(lines, "<br/>") + "</p>\n")
	}

	for i, tbl := range doc.Tables {
		if len(tbl) == 0 {
			continue
		}
		fmt.Fprintf(&b, "<h2>표 %d</h2>\n", i+1)
		b.WriteString(tableHTML(tbl))
	}
	return b.String()
}

// tableHTML pads ragged rows so every row has the header's width.
func tableHTML(tbl document.Table) string {
	width := 0
	for _, row := range tbl {
		width = max(width, len(row))
	}
	var b strings.Builder
	b.WriteString("<table>")
	for r, row := range tbl {
		tag := "td"
		if r == 0 {
			tag = "th"
			b.WriteString("<thead>")
		} else if r == 1 {
			b.WriteString("<tbody>")
		}
		b.WriteString("<tr>")
		for c := 0; c < width; c++ {
			v := ""
			if c < len(row) {
				v = strings.ReplaceAll(html.EscapeString(row[c]), "\n", "<br/>")
			}
			fmt.Fprintf(&b, "<%s>%s</%s>", tag, v, tag)
		}
		b.WriteString("</tr>")
		if r == 0 {
			b.WriteString("</thead>")
		}
	}
	if len(tbl) > 1 {
		b.WriteString("</tbody>")
	}
	b.WriteString("</table>\n")
	return b.String()
}
