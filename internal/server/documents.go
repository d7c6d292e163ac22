package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/hwp-analyzer/internal/cache"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
)

const (
	msgProcessed   = "문서 처리가 완료되었습니다."
	msgProcessFail = "문서 처리 중 오류가 발생했습니다"
	msgExported    = "변환이 완료되었습니다."
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type imagePayload struct {
	Data        string `json:"data"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	SourceIndex int    `json:"source_index"`
}

type documentPayload struct {
	Filename   string              `json:"filename"`
	Text       string              `json:"text"`
	Images     []imagePayload      `json:"images"`
	Tables     []document.Table    `json:"tables"`
	Metadata   map[string]string   `json:"metadata"`
	Capability document.Capability `json:"capability"`
	Notes      []string            `json:"notes,omitempty"`
}

func newDocumentPayload(filename string, doc document.ProcessedDocument) documentPayload {
	images := make([]imagePayload, 0, len(doc.Images))
	for _, img := range doc.Images {
		images = append(images, imagePayload{
			Data:        base64.StdEncoding.EncodeToString(img.Bytes),
			Format:      img.Format,
			Width:       img.Width,
			Height:      img.Height,
			SourceIndex: img.SourceIndex,
		})
	}
	return documentPayload{
		Filename:   filename,
		Text:       doc.Text,
		Images:     images,
		Tables:     doc.Tables,
		Metadata:   doc.Metadata,
		Capability: doc.Capability,
		Notes:      doc.Notes,
	}
}

// processUpload stores the uploaded file and runs it through the handler.
func (s *Server) processUpload(w http.ResponseWriter, r *http.Request, defaults bool) (upload, document.ProcessedDocument, error) {
	up, err := s.readUpload(w, r)
	if err != nil {
		return up, document.ProcessedDocument{}, err
	}
	opts := document.DefaultOptions()
	if !defaults {
		if opts, err = processingOptions(up.Fields); err != nil {
			return up, document.ProcessedDocument{}, err
		}
	}
	doc, err := s.processPath(r.Context(), up.File.Path, opts)
	return up, doc, err
}

func (s *Server) processPath(ctx context.Context, path string, opts document.ProcessingOptions) (document.ProcessedDocument, error) {
	if s.deps.Documents == nil {
		return document.ProcessedDocument{}, errNoDocuments
	}
	return s.deps.Documents.Process(ctx, path, opts)
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	up, doc, err := s.processUpload(w, r, false)
	if err != nil {
		s.fail(w, r, msgProcessFail, err)
		return
	}
	writeOK(w, msgProcessed, newDocumentPayload(up.Filename, doc))
}

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	up, doc, err := s.processUpload(w, r, true)
	if err != nil {
		s.fail(w, r, msgProcessFail, err)
		return
	}
	writeOK(w, msgProcessed, map[string]any{
		"filename":   up.Filename,
		"text":       doc.Text,
		"char_count": len([]rune(doc.Text)),
		"capability": doc.Capability,
	})
}

func (s *Server) handleExtractMetadata(w http.ResponseWriter, r *http.Request) {
	up, doc, err := s.processUpload(w, r, true)
	if err != nil {
		s.fail(w, r, msgProcessFail, err)
		return
	}
	writeOK(w, msgProcessed, map[string]any{
		"filename":    up.Filename,
		"metadata":    doc.Metadata,
		"table_count": len(doc.Tables),
		"capability":  doc.Capability,
	})
}

func (s *Server) handleExportTables(w http.ResponseWriter, r *http.Request) {
	up, doc, err := s.processUpload(w, r, true)
	if err != nil {
		s.fail(w, r, msgProcessFail, err)
		return
	}
	data, err := s.deps.Exporter.TablesXLSX(doc)
	if err != nil {
		s.fail(w, r, msgProcessFail, err)
		return
	}
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(up.Filename, ".xlsx")))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	up, doc, err := s.processUpload(w, r, true)
	if err != nil {
		s.fail(w, r, msgProcessFail, err)
		return
	}
	md, err := s.deps.Exporter.Markdown(doc)
	if err != nil {
		s.fail(w, r, msgProcessFail, err)
		return
	}
	writeOK(w, msgExported, map[string]any{
		"filename": exportName(up.Filename, ".md"),
		"markdown": md,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":            "running",
		"version":           Version,
		"supported_formats": []string{"hwp", "hwpx"},
		"analysis_enabled":  s.deps.Analyzer != nil,
		"history_enabled":   s.deps.History != nil,
	}
	if s.deps.Documents != nil {
		data["capability"] = s.deps.Documents.Capability()
		data["cache"] = s.deps.Documents.CacheStats()
	}
	writeOK(w, "HWP 문서 처리 API가 실행 중입니다.", data)
}

type healthPayload struct {
	Status     string               `json:"status"`
	Version    string               `json:"version"`
	Requests   int64                `json:"requests"`
	Active     int64                `json:"active"`
	Capability *document.Capability `json:"capability,omitempty"`
	Cache      *cache.Stats         `json:"cache,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	total, active := s.counters()
	h := healthPayload{Status: "ok", Version: Version, Requests: total, Active: active}
	if s.deps.Documents != nil {
		c := s.deps.Documents.Capability()
		st := s.deps.Documents.CacheStats()
		h.Capability, h.Cache = &c, &st
		if c.Degraded {
			h.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, h)
}

// exportName swaps the document extension for ext.
func exportName(filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "document"
	}
	return base + ext
}
