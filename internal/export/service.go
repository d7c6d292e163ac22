package export

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
)

// ErrNoTables is returned when a document has nothing to export as a workbook.
var ErrNoTables = common.NewAppError("NO_TABLES", "document contains no tables", common.ErrNotFound)

const (
	metadataSheet = "Metadata"
	maxCellRunes  = 32767 // excel cell limit
	maxColWidth   = 60
)

// Service turns extracted documents into XLSX and Markdown.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// TablesXLSX returns a workbook (as bytes) with one sheet per table followed
// by a Metadata sheet.
func (s *Service) TablesXLSX(doc document.ProcessedDocument) ([]byte, error) {
	start := time.Now()
	if len(doc.Tables) == 0 {
		return nil, ErrNoTables
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()

	cells := 0
	for i, tbl := range doc.Tables {
		sheet := fmt.Sprintf("Table %d", i+1)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}
		n, err := writeTable(f, sheet, tbl)
		if err != nil {
			return nil, err
		}
		cells += n
	}

	if _, err := f.NewSheet(metadataSheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	keys := make([]string, 0, len(doc.Metadata))
	for k := range doc.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make(document.Table, 0, len(keys)+1)
	rows = append(rows, []string{"key", "value"})
	for _, k := range keys {
		rows = append(rows, []string{k, doc.Metadata[k]})
	}
	if _, err := writeTable(f, metadataSheet, rows); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"filename", doc.Metadata[document.MetaFilename],
		"tables", len(doc.Tables),
		"cells", cells,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, tbl document.Table) (int, error) {
	widths := map[int]int{}
	cells := 0
	for r, row := range tbl {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return cells, err
			}
			if err := f.SetCellValue(sheet, cell, truncate(v, maxCellRunes)); err != nil {
				return cells, fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
			widths[c] = max(widths[c], utf8.RuneCountInString(v))
			cells++
		}
	}
	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return cells, err
		}
		// Hangul is roughly two columns wide.
		_ = f.SetColWidth(sheet, col, col, float64(min(max(w*2, 8), maxColWidth)))
	}
	return cells, nil
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
