package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/ingest"
)

const maxFieldBytes = 64 << 10

// upload is a parsed multipart request: the stored file plus form fields.
type upload struct {
	File     ingest.StoredFile
	Filename string
	Fields   map[string]string
}

var errNoFile = common.NewAppError("MISSING_FILE", "multipart field \"file\" is required", common.ErrInvalidInput)

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// readUpload streams the multipart body, storing the "file" part in the
// upload store without buffering it in memory.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	out := upload{Fields: map[string]string{}}
	if s.deps.Uploads == nil {
		return out, common.NewAppError("UPLOADS_DISABLED", "upload storage is not configured", common.ErrDependency)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		return out, common.NewAppError("INVALID_INPUT", "multipart/form-data body expected", common.ErrInvalidInput)
	}

	found := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		name := part.FormName()
		switch {
		case name == "file" && !found:
			out.Filename = part.FileName()
			out.File, err = s.deps.Uploads.Save(part, out.Filename)
			if err != nil {
				_ = part.Close()
				return out, err
			}
			found = true
		case name != "":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				_ = part.Close()
				return out, err
			}
			out.Fields[name] = strings.TrimSpace(string(b))
		}
		_ = part.Close()
	}
	if !found {
		return out, errNoFile
	}
	return out, nil
}

// processingOptions reads include_images, image_limit and image_min_size.
func processingOptions(fields map[string]string) (document.ProcessingOptions, error) {
	opts := document.DefaultOptions()
	var err error
	if opts.IncludeImages, err = formBool(fields["include_images"], opts.IncludeImages); err != nil {
		return opts, common.NewAppError("INVALID_INPUT", "include_images must be a boolean", common.ErrInvalidInput)
	}
	if opts.ImageLimit, err = formInt(fields["image_limit"], opts.ImageLimit); err != nil {
		return opts, common.NewAppError("INVALID_INPUT", "image_limit must be an integer", common.ErrInvalidInput)
	}
	if opts.ImageMinSize, err = formInt(fields["image_min_size"], opts.ImageMinSize); err != nil {
		return opts, common.NewAppError("INVALID_INPUT", "image_min_size must be an integer", common.ErrInvalidInput)
	}
	return opts, opts.Validate()
}
