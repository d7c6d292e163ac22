package document

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
	"github.com/richardlehane/msoleps/types"
	"golang.org/x/text/encoding/unicode"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

// HWP 5.x compound file layout.
const (
	hwpSignature      = "HWP Document File"
	hwpFlagCompressed = 1 << 0
	hwpFlagPassword   = 1 << 1
	hwpFlagDistribute = 1 << 2

	hwpTagBegin    = 0x10
	hwpTagParaText = hwpTagBegin + 51

	// mscfb strips the leading \x05 of property set stream names.
	summaryStream = "HwpSummaryInformation"

	defaultMaxStreamBytes = 64 << 20
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

type hwpSection struct {
	index int
	data  []byte
}

type hwpBinItem struct {
	name string
	data []byte
}

// hwpPackage holds the streams of an HWP file that extraction cares about.
type hwpPackage struct {
	version  string
	flags    uint32
	sections []hwpSection
	prvText  []byte
	summary  map[string]string
	binData  []hwpBinItem
	warnings []string
	maxBytes int64
}

func (p *hwpPackage) compressed() bool { return p.flags&hwpFlagCompressed != 0 }

// bodyLocked reports whether BodyText is unavailable to us (password or
// distribution documents keep the body encrypted).
func (p *hwpPackage) bodyLocked() bool {
	return p.flags&(hwpFlagPassword|hwpFlagDistribute) != 0
}

// readHWP walks the OLE container once and collects FileHeader, BodyText
// sections, PrvText, the summary property set and BinData streams.
func readHWP(ctx context.Context, path string, maxStream int64) (*hwpPackage, error) {
	if maxStream <= 0 {
		maxStream = defaultMaxStreamBytes
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return nil, unsupported(path, fmt.Errorf("open compound file: %w", err))
	}

	pkg := &hwpPackage{maxBytes: maxStream}
	sawHeader := false
	for entry, nerr := doc.Next(); nerr == nil; entry, nerr = doc.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parent := ""
		if len(entry.Path) > 0 {
			parent = entry.Path[len(entry.Path)-1]
		}
		switch {
		case entry.Name == "FileHeader":
			raw, err := readStream(entry, maxStream)
			if err != nil {
				return nil, unreadable(path, fmt.Errorf("read FileHeader: %w", err))
			}
			if err := pkg.parseFileHeader(raw); err != nil {
				return nil, unsupported(path, err)
			}
			sawHeader = true
		case parent == "BodyText" && strings.HasPrefix(entry.Name, "Section"):
			idx, err := strconv.Atoi(strings.TrimPrefix(entry.Name, "Section"))
			if err != nil {
				continue
			}
			raw, err := readStream(entry, maxStream)
			if err != nil {
				pkg.warnings = append(pkg.warnings, fmt.Sprintf("section %d unreadable: %v", idx, err))
				continue
			}
			pkg.sections = append(pkg.sections, hwpSection{index: idx, data: raw})
		case entry.Name == "PrvText":
			raw, err := readStream(entry, maxStream)
			if err == nil {
				pkg.prvText = raw
			}
		case strings.TrimLeft(entry.Name, "\x05") == summaryStream:
			raw, err := readStream(entry, maxStream)
			if err != nil {
				pkg.warnings = append(pkg.warnings, fmt.Sprintf("summary information unreadable: %v", err))
				continue
			}
			props, err := msoleps.NewFrom(bytes.NewReader(raw))
			if err != nil {
				pkg.warnings = append(pkg.warnings, fmt.Sprintf("summary information unreadable: %v", err))
				continue
			}
			pkg.summary = summaryFromProperties(props.Property, propertyIDs(raw))
		case parent == "BinData" && entry.Size > 0:
			raw, err := readStream(entry, maxStream)
			if err != nil {
				pkg.warnings = append(pkg.warnings, fmt.Sprintf("bindata %s unreadable: %v", entry.Name, err))
				continue
			}
			pkg.binData = append(pkg.binData, hwpBinItem{name: entry.Name, data: raw})
		}
	}
	if !sawHeader {
		return nil, unsupported(path, errors.New("compound file has no HWP FileHeader"))
	}

	sort.Slice(pkg.sections, func(i, j int) bool { return pkg.sections[i].index < pkg.sections[j].index })
	sort.Slice(pkg.binData, func(i, j int) bool { return pkg.binData[i].name < pkg.binData[j].name })

	if pkg.compressed() {
		for i := range pkg.sections {
			plain, err := inflate(pkg.sections[i].data, maxStream)
			if err != nil {
				pkg.warnings = append(pkg.warnings, fmt.Sprintf("section %d: %v", pkg.sections[i].index, err))
				plain = nil
			}
			pkg.sections[i].data = plain
		}
	}
	return pkg, nil
}

func readStream(r io.Reader, max int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, max))
}

func inflate(raw []byte, max int64) ([]byte, error) {
	zr := flate.NewReader(bytes.NewReader(raw))
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, max))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

func (p *hwpPackage) parseFileHeader(raw []byte) error {
	if len(raw) < 40 || !strings.HasPrefix(string(raw[:32]), hwpSignature) {
		return errors.New("FileHeader signature mismatch")
	}
	v := binary.LittleEndian.Uint32(raw[32:36])
	p.version = fmt.Sprintf("%d.%d.%d.%d", v>>24, (v>>16)&0xFF, (v>>8)&0xFF, v&0xFF)
	p.flags = binary.LittleEndian.Uint32(raw[36:40])
	return nil
}

// bodyText concatenates PARA_TEXT records of every section.
func (p *hwpPackage) bodyText() string {
	var b strings.Builder
	for _, s := range p.sections {
		for _, rec := range parseRecords(s.data) {
			if rec.tag != hwpTagParaText {
				continue
			}
			b.WriteString(decodeParaText(rec.data))
		}
	}
	return b.String()
}

// text prefers BodyText and falls back to the PrvText preview stream.
func (p *hwpPackage) text() (string, string) {
	if !p.bodyLocked() {
		if t := strings.TrimSpace(p.bodyText()); t != "" {
			return t, "bodytext"
		}
	}
	if len(p.prvText) > 0 {
		if t, err := utf16le.NewDecoder().Bytes(p.prvText); err == nil {
			return strings.TrimRight(string(t), "\x00"), "prvtext"
		}
	}
	return "", "none"
}

// lockedText returns the preview text of an encrypted document, or an
// unreadable error when the file carries none.
func (p *hwpPackage) lockedText(path string) (string, error) {
	text, _ := p.text()
	if strings.TrimSpace(text) == "" {
		return "", unreadable(path, errors.New("document body is encrypted and has no preview text"))
	}
	return text, nil
}

func (p *hwpPackage) metadata(path string) map[string]string {
	md := baseMetadata(path, constants.HWP, len(p.sections))
	for k, v := range p.summary {
		md[k] = v
	}
	if p.version != "" {
		md["hwp_version"] = p.version
	}
	return md
}

type hwpRecord struct {
	tag   uint16
	level uint16
	data  []byte
}

// parseRecords splits a decompressed section into tag records. A record
// header packs tag (10 bits), level (10 bits) and size (12 bits); size 0xFFF
// means the real size follows as a uint32.
func parseRecords(b []byte) []hwpRecord {
	var recs []hwpRecord
	for off := 0; off+4 <= len(b); {
		h := binary.LittleEndian.Uint32(b[off:])
		off += 4
		tag := uint16(h & 0x3FF)
		level := uint16((h >> 10) & 0x3FF)
		size := int(h >> 20)
		if size == 0xFFF {
			if off+4 > len(b) {
				break
			}
			size = int(binary.LittleEndian.Uint32(b[off:]))
			off += 4
		}
		if size < 0 || off+size > len(b) {
			break
		}
		recs = append(recs, hwpRecord{tag: tag, level: level, data: b[off : off+size]})
		off += size
	}
	return recs
}

// decodeParaText converts PARA_TEXT payload to a string. Control characters
// below 32 occupy either one code unit or eight (inline/extended controls).
func decodeParaText(b []byte) string {
	units := make([]byte, 0, len(b))
	for i := 0; i+1 < len(b); {
		c := binary.LittleEndian.Uint16(b[i:])
		if c >= 32 {
			units = append(units, b[i], b[i+1])
			i += 2
			continue
		}
		switch c {
		case 10, 13:
			units = append(units, '\n', 0)
			i += 2
		case 30, 31:
			units = append(units, ' ', 0)
			i += 2
		case 0, 24, 25, 26, 27, 28, 29:
			i += 2
		case 9:
			units = append(units, '\t', 0)
			i += 16
		default:
			i += 16
		}
	}
	out, err := utf16le.NewDecoder().Bytes(units)
	if err != nil {
		return ""
	}
	return string(out)
}

// HWP summary property identifiers. The set uses its own FMTID, so msoleps
// leaves property names empty and lookups go by ID.
var hwpSummaryIDs = map[uint32]string{
	2:  MetaTitle,
	3:  MetaSubject,
	4:  MetaAuthor,
	5:  MetaKeywords,
	6:  MetaComments,
	8:  MetaLastSavedBy,
	12: MetaCreated,
	13: MetaModified,
}

// summaryFromProperties maps the HWP summary property set onto metadata
// keys. ids lists property identifiers in the order msoleps returns them;
// when it does not line up the msoleps names are used instead.
func summaryFromProperties(props []*msoleps.Property, ids []uint32) map[string]string {
	byID := len(ids) == len(props)
	out := map[string]string{}
	for i, p := range props {
		if p == nil {
			continue
		}
		var (
			key string
			ok  bool
		)
		if byID {
			key, ok = hwpSummaryIDs[ids[i]]
		}
		if !ok {
			key, ok = summaryKey(p.Name)
		}
		if !ok {
			continue
		}
		val := strings.TrimSpace(strings.TrimRight(propertyValue(p), "\x00"))
		if val == "" {
			continue
		}
		out[key] = val
	}
	return out
}

// propertyIDs reads the identifier table of each property set in a
// property set stream. It returns nil on any framing problem.
func propertyIDs(b []byte) []uint32 {
	if len(b) < 48 {
		return nil
	}
	offsets := []uint32{binary.LittleEndian.Uint32(b[44:48])}
	if binary.LittleEndian.Uint32(b[24:28]) == 2 {
		if len(b) < 68 {
			return nil
		}
		offsets = append(offsets, binary.LittleEndian.Uint32(b[64:68]))
	}
	var ids []uint32
	for _, o := range offsets {
		off := int(o)
		if off < 0 || off+8 > len(b) {
			return nil
		}
		n := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		if n < 0 || off+8+n*8 > len(b) {
			return nil
		}
		for i := 0; i < n; i++ {
			at := off + 8 + i*8
			ids = append(ids, binary.LittleEndian.Uint32(b[at:at+4]))
		}
	}
	return ids
}

// propertyValue guards against property types msoleps cannot render.
func propertyValue(p *msoleps.Property) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	if ft, ok := p.T.(types.FileTime); ok {
		return ft.Time().UTC().Format(time.RFC3339)
	}
	return p.String()
}

// binItem returns the BinData stream called name, inflated when the
// document is compressed and the payload is not already a known image.
func (p *hwpPackage) binItem(name string) ([]byte, bool) {
	for _, it := range p.binData {
		if !strings.EqualFold(it.name, name) {
			continue
		}
		if p.compressed() && sniffImage(it.data) == "" {
			if plain, err := inflate(it.data, p.streamLimit()); err == nil {
				return plain, true
			}
		}
		return it.data, true
	}
	return nil, false
}

func (p *hwpPackage) streamLimit() int64 {
	if p.maxBytes <= 0 {
		return defaultMaxStreamBytes
	}
	return p.maxBytes
}

func summaryKey(name string) (string, bool) {
	n := strings.ToLower(strings.NewReplacer(" ", "", "_", "").Replace(name))
	switch n {
	case "title":
		return MetaTitle, true
	case "subject":
		return MetaSubject, true
	case "author":
		return MetaAuthor, true
	case "keywords":
		return MetaKeywords, true
	case "comments":
		return MetaComments, true
	case "createtime", "createdtime", "created":
		return MetaCreated, true
	case "lastsavetime", "lastsaved", "modified":
		return MetaModified, true
	case "lastauthor", "lastsavedby":
		return MetaLastSavedBy, true
	default:
		return "", false
	}
}
