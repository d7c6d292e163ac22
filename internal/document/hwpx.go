package document

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

var reSectionName = regexp.MustCompile(`^Contents/section(\d+)\.xml$`)

// hwpxPackage is the parsed content of an OWPML (HWPX) zip.
type hwpxPackage struct {
	text      string
	tables    []Table
	sections  int
	imageRefs []string // binaryItemIDRef values in document order
	manifest  map[string]string
	binData   []hwpBinItem
	meta      map[string]string
	warnings  []string
}

type hwpxSectionFile struct {
	index int
	file  *zip.File
}

// readHWPX parses section XML for text and tables, the package manifest and
// metadata. BinData payloads are only loaded when withImages is set.
func readHWPX(ctx context.Context, p string, withImages bool, maxStream int64) (*hwpxPackage, error) {
	if maxStream <= 0 {
		maxStream = defaultMaxStreamBytes
	}
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, unsupported(p, fmt.Errorf("open hwpx zip: %w", err))
	}
	defer zr.Close()

	pkg := &hwpxPackage{manifest: map[string]string{}, meta: map[string]string{}}
	var sections []hwpxSectionFile
	var bins []*zip.File
	for _, f := range zr.File {
		switch {
		case reSectionName.MatchString(f.Name):
			n, _ := strconv.Atoi(reSectionName.FindStringSubmatch(f.Name)[1])
			sections = append(sections, hwpxSectionFile{index: n, file: f})
		case f.Name == "Contents/content.hpf":
			if err := pkg.readManifest(f); err != nil {
				pkg.warnings = append(pkg.warnings, fmt.Sprintf("content.hpf: %v", err))
			}
		case f.Name == "Contents/header.xml":
			if err := pkg.readDublinCore(f); err != nil {
				pkg.warnings = append(pkg.warnings, fmt.Sprintf("header.xml: %v", err))
			}
		case strings.HasPrefix(f.Name, "BinData/") && !f.FileInfo().IsDir():
			bins = append(bins, f)
		}
	}
	if len(sections) == 0 {
		return nil, unsupported(p, errors.New("zip has no Contents/section*.xml; not an HWPX document"))
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].index < sections[j].index })
	pkg.sections = len(sections)

	var text strings.Builder
	for _, s := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := pkg.readSection(s.file, &text); err != nil {
			return nil, unreadable(p, fmt.Errorf("%s: %w", s.file.Name, err))
		}
	}
	pkg.text = text.String()

	if withImages {
		sort.Slice(bins, func(i, j int) bool { return bins[i].Name < bins[j].Name })
		for _, f := range bins {
			data, err := readZipFile(f, maxStream)
			if err != nil {
				pkg.warnings = append(pkg.warnings, fmt.Sprintf("%s: %v", f.Name, err))
				continue
			}
			pkg.binData = append(pkg.binData, hwpBinItem{name: f.Name, data: data})
		}
	}
	return pkg, nil
}

func readZipFile(f *zip.File, max int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, max))
}

// tableBuilder accumulates one hp:tbl while the decoder walks into it.
type tableBuilder struct {
	rows [][]string
	row  []string
	cell *strings.Builder
}

// readSection streams one section: <t> runs become text, <p> ends a line,
// tbl/tr/tc build tables (nested tables are collected separately).
func (pkg *hwpxPackage) readSection(f *zip.File, text *strings.Builder) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		inText int
		stack  []*tableBuilder
		// cellParas counts finished paragraphs in the innermost cell.
		cellParas []int
	)
	current := func() *tableBuilder {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}
	write := func(s string) {
		text.WriteString(s)
		if tb := current(); tb != nil && tb.cell != nil {
			tb.cell.WriteString(s)
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText++
			case "tab":
				if inText > 0 {
					write("\t")
				}
			case "lineBreak":
				if inText > 0 {
					write("\n")
				}
			case "p":
				if tb := current(); tb != nil && tb.cell != nil && cellParas[len(cellParas)-1] > 0 {
					tb.cell.WriteString(" ")
				}
			case "tbl":
				stack = append(stack, &tableBuilder{})
			case "tr":
				if tb := current(); tb != nil {
					tb.row = []string{}
				}
			case "tc":
				if tb := current(); tb != nil {
					tb.cell = &strings.Builder{}
					cellParas = append(cellParas, 0)
				}
			case "img", "pic":
				for _, a := range t.Attr {
					if a.Name.Local == "binaryItemIDRef" && a.Value != "" {
						pkg.imageRefs = append(pkg.imageRefs, a.Value)
					}
				}
			}
		case xml.CharData:
			if inText > 0 {
				write(string(t))
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if inText > 0 {
					inText--
				}
			case "p":
				text.WriteString("\n")
				if len(cellParas) > 0 {
					cellParas[len(cellParas)-1]++
				}
			case "tc":
				if tb := current(); tb != nil && tb.cell != nil {
					tb.row = append(tb.row, strings.TrimSpace(tb.cell.String()))
					tb.cell = nil
					cellParas = cellParas[:len(cellParas)-1]
				}
			case "tr":
				if tb := current(); tb != nil && tb.row != nil {
					tb.rows = append(tb.rows, tb.row)
					tb.row = nil
				}
			case "tbl":
				if tb := current(); tb != nil {
					stack = stack[:len(stack)-1]
					if len(tb.rows) > 0 {
						pkg.tables = append(pkg.tables, Table(tb.rows))
					}
				}
			}
		}
	}
	return nil
}

// readManifest loads Contents/content.hpf: item id -> href and opf metadata.
func (pkg *hwpxPackage) readManifest(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "item":
			id, href := attr(se, "id"), attr(se, "href")
			if id != "" && href != "" {
				pkg.manifest[id] = href
			}
		case "title":
			pkg.setMeta(MetaTitle, readCharData(dec))
		case "meta":
			if key, ok := opfMetaKey(attr(se, "name")); ok {
				pkg.setMeta(key, readCharData(dec))
			}
		}
	}
}

// readDublinCore picks dc:* elements wherever they appear.
func (pkg *hwpxPackage) readDublinCore(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Space != "http://purl.org/dc/elements/1.1/" {
			continue
		}
		key := ""
		switch se.Name.Local {
		case "title":
			key = MetaTitle
		case "subject":
			key = MetaSubject
		case "creator":
			key = MetaAuthor
		case "date":
			key = MetaCreated
		case "description":
			key = MetaComments
		}
		if key != "" {
			pkg.setMeta(key, readCharData(dec))
		}
	}
}

func (pkg *hwpxPackage) setMeta(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if _, exists := pkg.meta[key]; !exists {
		pkg.meta[key] = value
	}
}

func opfMetaKey(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "creator":
		return MetaAuthor, true
	case "subject":
		return MetaSubject, true
	case "description":
		return MetaComments, true
	case "keyword", "keywords":
		return MetaKeywords, true
	case "createddate", "date":
		return MetaCreated, true
	case "modifieddate":
		return MetaModified, true
	case "lastsaveby":
		return MetaLastSavedBy, true
	default:
		return "", false
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// readCharData collects text up to the end of the current element.
func readCharData(dec *xml.Decoder) string {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
	return b.String()
}

func (pkg *hwpxPackage) metadata(p string) map[string]string {
	md := baseMetadata(p, constants.HWPX, pkg.sections)
	for k, v := range pkg.meta {
		md[k] = v
	}
	return md
}

// orderedImages returns BinData payloads referenced from the body in
// reference order, followed by unreferenced BinData entries by name.
func (pkg *hwpxPackage) orderedImages() [][]byte {
	byName := make(map[string][]byte, len(pkg.binData))
	for _, b := range pkg.binData {
		byName[b.name] = b.data
	}
	used := map[string]bool{}
	var out [][]byte
	for _, ref := range pkg.imageRefs {
		name := pkg.resolveBinRef(ref, byName)
		if name == "" || used[name] {
			continue
		}
		used[name] = true
		out = append(out, byName[name])
	}
	for _, b := range pkg.binData {
		if !used[b.name] {
			out = append(out, b.data)
		}
	}
	return out
}

func (pkg *hwpxPackage) resolveBinRef(ref string, byName map[string][]byte) string {
	if href, ok := pkg.manifest[ref]; ok {
		name := path.Clean(href)
		if _, ok := byName[name]; ok {
			return name
		}
	}
	// Manifest missing: match BinData/<ref>.<ext>.
	for name := range byName {
		base := path.Base(name)
		if strings.TrimSuffix(base, path.Ext(base)) == ref {
			return name
		}
	}
	return ""
}
