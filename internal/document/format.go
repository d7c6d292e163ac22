package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

var (
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
)

// DetectFormat sniffs the container signature and returns constants.HWP or
// constants.HWPX. The extension only matters when it contradicts nothing.
func DetectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", unreadable(path, err)
	}
	defer f.Close()

	head := make([]byte, len(oleMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", unreadable(path, err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, oleMagic):
		return constants.HWP, nil
	case bytes.HasPrefix(head, zipMagic):
		return constants.HWPX, nil
	}
	ext := constants.NormalizeExt(filepath.Ext(path))
	if constants.IsAllowedExt(ext) {
		return "", unsupported(path, fmt.Errorf("content of .%s file is not an HWP/HWPX container", ext))
	}
	return "", unsupported(path, fmt.Errorf("extension %q is not supported", ext))
}

func baseMetadata(path, format string, sections int) map[string]string {
	md := map[string]string{
		MetaFilename: filepath.Base(path),
		MetaFileType: format,
	}
	if st, err := os.Stat(path); err == nil {
		md[MetaFileSize] = fmt.Sprintf("%d", st.Size())
	}
	if sections < 1 {
		sections = 1
	}
	md[MetaPageCount] = fmt.Sprintf("%d", sections)
	return md
}
