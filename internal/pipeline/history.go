package pipeline

import (
	"encoding/json"

	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/entity"
)

// HistoryRecord builds the row stored for one analysis of doc.
func HistoryRecord(filename string, doc document.ProcessedDocument, res analysis.Result) *entity.AnalysisRecord {
	raw, err := json.Marshal(res)
	if err != nil {
		raw = []byte("{}")
	}
	if filename == "" {
		filename = doc.Metadata[document.MetaFilename]
	}
	return &entity.AnalysisRecord{
		Filename:     filename,
		FileType:     doc.Metadata[document.MetaFileType],
		TextHash:     TextHash(doc.Text),
		DocumentType: string(res.DocumentType),
		Method:       string(res.Method),
		Summary:      res.Summary,
		Reward:       res.Reward,
		Result:       raw,
	}
}
