package document

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"unicode/utf16"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- compound file writer ----

const (
	cfbSectorSize = 512
	cfbFreeSect   = 0xFFFFFFFF
	cfbEndOfChain = 0xFFFFFFFE
	cfbFATSect    = 0xFFFFFFFD
	cfbNoStream   = 0xFFFFFFFF
	cfbMinStream  = 4096 // streams below the mini cutoff would need a mini stream
)

// cfbNode is a storage (children != nil) or a stream (data).
type cfbNode struct {
	name     string
	data     []byte
	children []*cfbNode
}

func cfbStream(name string, data []byte) *cfbNode { return &cfbNode{name: name, data: data} }

func cfbStorage(name string, children ...*cfbNode) *cfbNode {
	if children == nil {
		children = []*cfbNode{}
	}
	return &cfbNode{name: name, children: children}
}

type cfbEntry struct {
	node               *cfbNode
	typ                byte
	left, right, child uint32
	start, size        uint32
}

// buildCFB writes a version 3 compound file. Every stream is padded to the
// mini stream cutoff so only the regular FAT is needed.
func buildCFB(t *testing.T, root ...*cfbNode) []byte {
	t.Helper()

	entries := []*cfbEntry{{node: cfbStorage("Root Entry"), typ: 5, left: cfbNoStream, right: cfbNoStream, child: cfbNoStream, start: cfbEndOfChain}}
	var add func(parent *cfbEntry, kids []*cfbNode)
	add = func(parent *cfbEntry, kids []*cfbNode) {
		var prev *cfbEntry
		for _, k := range kids {
			e := &cfbEntry{node: k, typ: 2, left: cfbNoStream, right: cfbNoStream, child: cfbNoStream}
			if k.children != nil {
				e.typ = 1
			}
			id := uint32(len(entries))
			entries = append(entries, e)
			if prev == nil {
				parent.child = id
			} else {
				prev.right = id
			}
			prev = e
			if k.children != nil {
				add(e, k.children)
			}
		}
	}
	add(entries[0], root)

	dirSectors := (len(entries)*128 + cfbSectorSize - 1) / cfbSectorSize
	dataSectors := 0
	for _, e := range entries {
		if e.typ == 2 {
			if len(e.node.data) < cfbMinStream {
				padded := make([]byte, cfbMinStream)
				copy(padded, e.node.data)
				e.node.data = padded
			}
			dataSectors += (len(e.node.data) + cfbSectorSize - 1) / cfbSectorSize
		}
	}
	perFAT := cfbSectorSize / 4
	fatSectors := 1
	for fatSectors*perFAT < fatSectors+dirSectors+dataSectors {
		fatSectors++
	}
	if fatSectors > 109 {
		t.Fatalf("fixture too large for header DIFAT")
	}

	total := fatSectors + dirSectors + dataSectors
	fat := make([]uint32, fatSectors*perFAT)
	for i := range fat {
		fat[i] = cfbFreeSect
	}
	for i := 0; i < fatSectors; i++ {
		fat[i] = cfbFATSect
	}
	chain := func(start, n int) {
		for i := 0; i < n; i++ {
			if i == n-1 {
				fat[start+i] = cfbEndOfChain
			} else {
				fat[start+i] = uint32(start + i + 1)
			}
		}
	}
	dirStart := fatSectors
	chain(dirStart, dirSectors)

	body := make([]byte, total*cfbSectorSize)
	next := fatSectors + dirSectors
	for _, e := range entries {
		if e.typ != 2 {
			continue
		}
		n := (len(e.node.data) + cfbSectorSize - 1) / cfbSectorSize
		e.start = uint32(next)
		e.size = uint32(len(e.node.data))
		copy(body[next*cfbSectorSize:], e.node.data)
		chain(next, n)
		next += n
	}

	for i, v := range fat {
		binary.LittleEndian.PutUint32(body[i*4:], v)
	}

	dir := body[dirStart*cfbSectorSize:]
	for i := range dirSectors * cfbSectorSize / 128 {
		off := i * 128
		if i >= len(entries) {
			binary.LittleEndian.PutUint32(dir[off+0x44:], cfbNoStream)
			binary.LittleEndian.PutUint32(dir[off+0x48:], cfbNoStream)
			binary.LittleEndian.PutUint32(dir[off+0x4C:], cfbNoStream)
			continue
		}
		e := entries[i]
		name := utf16.Encode([]rune(e.node.name))
		for j, u := range name {
			binary.LittleEndian.PutUint16(dir[off+j*2:], u)
		}
		binary.LittleEndian.PutUint16(dir[off+0x40:], uint16((len(name)+1)*2))
		dir[off+0x42] = e.typ
		dir[off+0x43] = 1
		binary.LittleEndian.PutUint32(dir[off+0x44:], e.left)
		binary.LittleEndian.PutUint32(dir[off+0x48:], e.right)
		binary.LittleEndian.PutUint32(dir[off+0x4C:], e.child)
		binary.LittleEndian.PutUint32(dir[off+0x74:], e.start)
		binary.LittleEndian.PutUint32(dir[off+0x78:], e.size)
	}

	header := make([]byte, cfbSectorSize)
	copy(header, oleMagic)
	binary.LittleEndian.PutUint16(header[0x18:], 0x003E)
	binary.LittleEndian.PutUint16(header[0x1A:], 0x0003)
	binary.LittleEndian.PutUint16(header[0x1C:], 0xFFFE)
	binary.LittleEndian.PutUint16(header[0x1E:], 9)
	binary.LittleEndian.PutUint16(header[0x20:], 6)
	binary.LittleEndian.PutUint32(header[0x2C:], uint32(fatSectors))
	binary.LittleEndian.PutUint32(header[0x30:], uint32(dirStart))
	binary.LittleEndian.PutUint32(header[0x38:], cfbMinStream)
	binary.LittleEndian.PutUint32(header[0x3C:], cfbEndOfChain)
	binary.LittleEndian.PutUint32(header[0x44:], cfbEndOfChain)
	for i := 0; i < 109; i++ {
		v := uint32(cfbFreeSect)
		if i < fatSectors {
			v = uint32(i)
		}
		binary.LittleEndian.PutUint32(header[0x4C+i*4:], v)
	}
	return append(header, body...)
}

// ---- HWP payloads ----

func hwpFileHeader(flags uint32) []byte {
	b := make([]byte, 256)
	copy(b, hwpSignature)
	binary.LittleEndian.PutUint32(b[32:], 0x05000300)
	binary.LittleEndian.PutUint32(b[36:], flags)
	return b
}

func utf16Bytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[i*2:], u)
	}
	return b
}

func hwpRecordBytes(tag uint16, level uint16, data []byte) []byte {
	var b bytes.Buffer
	size := len(data)
	if size >= 0xFFF {
		_ = binary.Write(&b, binary.LittleEndian, uint32(tag)|uint32(level)<<10|0xFFF<<20)
		_ = binary.Write(&b, binary.LittleEndian, uint32(size))
	} else {
		_ = binary.Write(&b, binary.LittleEndian, uint32(tag)|uint32(level)<<10|uint32(size)<<20)
	}
	b.Write(data)
	return b.Bytes()
}

// hwpSectionBytes encodes one PARA_TEXT record per paragraph, each ending
// with a paragraph break.
func hwpSectionBytes(paragraphs ...string) []byte {
	var b bytes.Buffer
	for _, p := range paragraphs {
		b.Write(hwpRecordBytes(hwpTagBegin, 0, make([]byte, 22))) // PARA_HEADER
		b.Write(hwpRecordBytes(hwpTagParaText, 1, append(utf16Bytes(p), 13, 0)))
	}
	return b.Bytes()
}

type hwpFixture struct {
	flags      uint32
	paragraphs []string
	prvText    string
	binData    map[string][]byte
	summary    []byte
	noHeader   bool
}

func writeHWP(t *testing.T, dir, name string, fx hwpFixture) string {
	t.Helper()
	var nodes []*cfbNode
	if !fx.noHeader {
		nodes = append(nodes, cfbStream("FileHeader", hwpFileHeader(fx.flags)))
	}
	compressed := fx.flags&hwpFlagCompressed != 0
	section := hwpSectionBytes(fx.paragraphs...)
	if compressed {
		section = deflateBytes(t, section)
	}
	nodes = append(nodes, cfbStorage("BodyText", cfbStream("Section0", section)))
	if fx.prvText != "" {
		nodes = append(nodes, cfbStream("PrvText", utf16Bytes(fx.prvText)))
	}
	if fx.summary != nil {
		nodes = append(nodes, cfbStream("\x05HwpSummaryInformation", fx.summary))
	}
	if len(fx.binData) > 0 {
		var items []*cfbNode
		for _, n := range sortedKeys(fx.binData) {
			data := fx.binData[n]
			if compressed && sniffImage(data) == "" {
				data = deflateBytes(t, data)
			}
			items = append(items, cfbStream(n, data))
		}
		nodes = append(nodes, cfbStorage("BinData", items...))
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buildCFB(t, nodes...), 0o644); err != nil {
		t.Fatalf("write hwp fixture: %v", err)
	}
	return p
}

func deflateBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	if _, err := zw.Write(b); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("deflate close: %v", err)
	}
	return buf.Bytes()
}

// hwpSummaryFMTID is {9FA2B660-1061-11D4-B4C6-006097C09D8C} in stream byte order.
var hwpSummaryFMTID = []byte{0x60, 0xB6, 0xA2, 0x9F, 0x61, 0x10, 0xD4, 0x11, 0xB4, 0xC6, 0x00, 0x60, 0x97, 0xC0, 0x9D, 0x8C}

// summaryProp is one property of a summary stream: a string (VT_LPWSTR) or,
// when when is set, a FILETIME.
type summaryProp struct {
	id   uint32
	text string
	when time.Time
}

// hwpSummaryBytes writes a single-set property stream under the HWP FMTID
// with a UTF-16 code page property first.
func hwpSummaryBytes(props ...summaryProp) []byte {
	type encoded struct {
		id   uint32
		data []byte
	}
	le := binary.LittleEndian
	codepage := make([]byte, 8)
	le.PutUint16(codepage, 0x0002)
	le.PutUint16(codepage[4:], 0x04B0)
	values := []encoded{{1, codepage}}
	for _, p := range props {
		var b []byte
		if !p.when.IsZero() {
			ft := uint64(p.when.Unix()+11644473600) * 10000000
			b = make([]byte, 12)
			le.PutUint16(b, 0x0040)
			le.PutUint32(b[4:], uint32(ft))
			le.PutUint32(b[8:], uint32(ft>>32))
		} else {
			chars := append(utf16Bytes(p.text), 0, 0)
			b = make([]byte, 8, 8+len(chars)+2)
			le.PutUint16(b, 0x001F)
			le.PutUint32(b[4:], uint32(len(chars)/2))
			b = append(b, chars...)
			for len(b)%4 != 0 {
				b = append(b, 0)
			}
		}
		values = append(values, encoded{p.id, b})
	}

	const setOffset = 48
	table := 8 + len(values)*8
	var body []byte
	offsets := make([]uint32, len(values))
	for i, v := range values {
		offsets[i] = uint32(table + len(body))
		body = append(body, v.data...)
	}
	set := make([]byte, table)
	le.PutUint32(set, uint32(table+len(body)))
	le.PutUint32(set[4:], uint32(len(values)))
	for i, v := range values {
		le.PutUint32(set[8+i*8:], v.id)
		le.PutUint32(set[12+i*8:], offsets[i])
	}

	header := make([]byte, setOffset)
	le.PutUint16(header, 0xFFFE)
	le.PutUint32(header[24:], 1)
	copy(header[28:], hwpSummaryFMTID)
	le.PutUint32(header[44:], setOffset)
	return append(append(header, set...), body...)
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// ---- HWPX packages ----

type zipEntry struct {
	name string
	data []byte
}

func writeZip(t *testing.T, dir, name string, files ...zipEntry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", f.name, err)
		}
		if _, err := w.Write(f.data); err != nil {
			t.Fatalf("zip write %s: %v", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip fixture: %v", err)
	}
	return p
}

const hwpxSectionXML = `<?xml version="1.0" encoding="UTF-8"?>
<hs:sec xmlns:hs="http://www.hancom.co.kr/hwpml/2011/section" xmlns:hp="http://www.hancom.co.kr/hwpml/2011/paragraph">
  <hp:p><hp:run><hp:t>연구 개요</hp:t></hp:run></hp:p>
  <hp:p><hp:run><hp:t>첫째<hp:tab/>항목</hp:t></hp:run></hp:p>
  <hp:p><hp:run><hp:tbl>
    <hp:tr><hp:tc><hp:subList><hp:p><hp:run><hp:t>구분</hp:t></hp:run></hp:p></hp:subList></hp:tc>
           <hp:tc><hp:subList><hp:p><hp:run><hp:t>예산</hp:t></hp:run></hp:p></hp:subList></hp:tc></hp:tr>
    <hp:tr><hp:tc><hp:subList><hp:p><hp:run><hp:t>1차년도</hp:t></hp:run></hp:p></hp:subList></hp:tc>
           <hp:tc><hp:subList><hp:p><hp:run><hp:t>100</hp:t></hp:run></hp:p><hp:p><hp:run><hp:t>백만원</hp:t></hp:run></hp:p></hp:subList></hp:tc></hp:tr>
  </hp:tbl></hp:run></hp:p>
  <hp:p><hp:run><hp:pic><hp:img binaryItemIDRef="image2"/></hp:pic><hp:pic><hp:img binaryItemIDRef="image1"/></hp:pic></hp:run></hp:p>
</hs:sec>`

const hwpxSection1XML = `<?xml version="1.0" encoding="UTF-8"?>
<hs:sec xmlns:hs="http://www.hancom.co.kr/hwpml/2011/section" xmlns:hp="http://www.hancom.co.kr/hwpml/2011/paragraph">
  <hp:p><hp:run><hp:t>결론</hp:t></hp:run></hp:p>
</hs:sec>`

const hwpxManifestXML = `<?xml version="1.0" encoding="UTF-8"?>
<opf:package xmlns:opf="http://www.idpf.org/2007/opf/">
  <opf:metadata>
    <opf:title>국가연구개발 과제 계획서</opf:title>
    <opf:meta name="creator" content="text">홍길동</opf:meta>
    <opf:meta name="keyword" content="text">연구, 예산</opf:meta>
    <opf:meta name="CreatedDate" content="text">2024-01-15T09:00:00Z</opf:meta>
  </opf:metadata>
  <opf:manifest>
    <opf:item id="image1" href="BinData/image1.png" media-type="image/png"/>
    <opf:item id="image2" href="BinData/image2.png" media-type="image/png"/>
    <opf:item id="section0" href="Contents/section0.xml" media-type="application/xml"/>
  </opf:manifest>
</opf:package>`

func writeHWPX(t *testing.T, dir, name string, extra ...zipEntry) string {
	t.Helper()
	files := []zipEntry{
		{"mimetype", []byte("application/hwp+zip")},
		{"Contents/content.hpf", []byte(hwpxManifestXML)},
		{"Contents/section1.xml", []byte(hwpxSection1XML)},
		{"Contents/section0.xml", []byte(hwpxSectionXML)},
	}
	return writeZip(t, dir, name, append(files, extra...)...)
}

// ---- images ----

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// ---- converter stub ----

// fakeRunner stands in for hwp5html. write receives the --output directory.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	write func(outDir string) error
	err   error
	errb  []byte
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.errb, f.err
	}
	outDir := ""
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--output" {
			outDir = args[i+1]
		}
	}
	if f.write != nil {
		if err := f.write(outDir); err != nil {
			return nil, []byte(err.Error()), err
		}
	}
	return nil, nil, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeIndex(html string, files map[string][]byte) func(string) error {
	return func(outDir string) error {
		if err := os.WriteFile(filepath.Join(outDir, "index.xhtml"), []byte(html), 0o644); err != nil {
			return err
		}
		for name, data := range files {
			p := filepath.Join(outDir, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(p, data, 0o644); err != nil {
				return err
			}
		}
		return nil
	}
}

func foundPath(name string) LookPathFunc {
	return func(string) (string, error) { return "/usr/local/bin/" + name, nil }
}

func missingPath(file string) (string, error) {
	return "", &os.PathError{Op: "lookpath", Path: file, Err: os.ErrNotExist}
}
