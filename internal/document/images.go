package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

var imageMagic = []struct {
	format string
	magic  []byte
}{
	{"jpeg", []byte{0xFF, 0xD8}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47}},
	{"gif", []byte{0x47, 0x49, 0x46}},
	{"bmp", []byte{0x42, 0x4D}},
}

// sniffImage returns the image format implied by the leading bytes, or "".
func sniffImage(b []byte) string {
	for _, m := range imageMagic {
		if bytes.HasPrefix(b, m.magic) {
			return m.format
		}
	}
	return ""
}

// imageSource loads one embedded object on demand.
type imageSource func() ([]byte, error)

func fromBytes(items [][]byte) []imageSource {
	out := make([]imageSource, len(items))
	for i, b := range items {
		out[i] = func() ([]byte, error) { return b, nil }
	}
	return out
}

// selectImages applies the size and count filters to candidates in document
// order. It stops loading as soon as ImageLimit images are kept. The returned
// note explains an empty result; it is "" when at least one image was kept or
// images were not requested.
func selectImages(candidates []imageSource, opts ProcessingOptions) ([]ImageRef, string) {
	out := []ImageRef{}
	if !opts.IncludeImages {
		return out, ""
	}
	if opts.ImageLimit <= 0 {
		return out, "images skipped: image limit is 0"
	}
	if len(candidates) == 0 {
		return out, "no embedded images"
	}

	undecodable := 0
	for i, load := range candidates {
		if len(out) >= opts.ImageLimit {
			break
		}
		data, err := load()
		if err != nil || sniffImage(data) == "" {
			undecodable++
			continue
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			undecodable++
			continue
		}
		if cfg.Width < opts.ImageMinSize || cfg.Height < opts.ImageMinSize {
			continue
		}
		out = append(out, ImageRef{
			Bytes:       data,
			Format:      format,
			Width:       cfg.Width,
			Height:      cfg.Height,
			SourceIndex: i,
		})
	}
	if len(out) > 0 {
		return out, ""
	}
	if undecodable == len(candidates) {
		return out, fmt.Sprintf("none of %d embedded objects is a supported image", len(candidates))
	}
	return out, fmt.Sprintf("all %d embedded images are smaller than %dpx", len(candidates)-undecodable, opts.ImageMinSize)
}
