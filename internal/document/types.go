package document

import (
	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

// ProcessingOptions controls optional extraction work. It is comparable and
// forms part of the result cache key.
type ProcessingOptions struct {
	IncludeImages bool `json:"include_images"`
	ImageLimit    int  `json:"image_limit"`
	ImageMinSize  int  `json:"image_min_size"` // pixels, applied to width and height
}

// DefaultOptions mirrors the API defaults: no images, limit 10, min size 100px.
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{
		IncludeImages: false,
		ImageLimit:    constants.DefaultImageLimit,
		ImageMinSize:  constants.DefaultImageMinSize,
	}
}

// Validate rejects negative limits.
func (o ProcessingOptions) Validate() error {
	return common.NewValidator().
		Field("image_limit", o.ImageLimit, common.NonNegative).
		Field("image_min_size", o.ImageMinSize, common.NonNegative).
		Err()
}

// ImageRef is an embedded image that passed the size and count filters.
type ImageRef struct {
	Bytes       []byte `json:"-"`
	Format      string `json:"format"` // jpeg | png | gif | bmp
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	SourceIndex int    `json:"source_index"` // position among all embedded candidates
}

// Table is a grid of cell text, rows in document order.
type Table [][]string

// Capability describes what the extractor that produced a result could do.
type Capability struct {
	Mode     constants.CapabilityMode `json:"mode"`
	Degraded bool                     `json:"degraded"`
	Reason   string                   `json:"reason,omitempty"`
}

// ProcessedDocument is the extraction result. Values held by the cache are
// shared between callers and must be treated as read-only.
type ProcessedDocument struct {
	Text       string            `json:"text"`
	Images     []ImageRef        `json:"images"`
	Tables     []Table           `json:"tables"`
	Metadata   map[string]string `json:"metadata"`
	Capability Capability        `json:"capability"`
	Notes      []string          `json:"notes,omitempty"`
}

// Metadata keys shared by both formats.
const (
	MetaFilename    = "filename"
	MetaFileSize    = "file_size"
	MetaFileType    = "file_type"
	MetaPageCount   = "page_count"
	MetaTitle       = "title"
	MetaSubject     = "subject"
	MetaAuthor      = "author"
	MetaKeywords    = "keywords"
	MetaComments    = "comments"
	MetaCreated     = "created"
	MetaModified    = "modified"
	MetaLastSavedBy = "last_saved_by"
)

func newResult(c Capability) ProcessedDocument {
	return ProcessedDocument{
		Images:     []ImageRef{},
		Tables:     []Table{},
		Metadata:   map[string]string{},
		Capability: c,
	}
}

func (d *ProcessedDocument) note(msg string) {
	d.Notes = append(d.Notes, msg)
}
