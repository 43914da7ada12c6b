// Package imagemeta reads pixel dimensions and embedded EXIF metadata from
// image files. Failures are per-file and recoverable; callers record them as
// warnings and continue.
package imagemeta

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"folio/internal/filetree"
)

// Metadata carries the EXIF fields folio preserves on canvases.
type Metadata struct {
	CapturedAt  time.Time
	CameraMake  string
	CameraModel string
	Orientation int
}

// Fields renders the non-empty metadata as a flat string map suitable for
// entity metadata.
func (m Metadata) Fields() map[string]string {
	fields := make(map[string]string)
	if !m.CapturedAt.IsZero() {
		fields["capturedAt"] = m.CapturedAt.Format(time.RFC3339)
	}
	if m.CameraMake != "" {
		fields["cameraMake"] = m.CameraMake
	}
	if m.CameraModel != "" {
		fields["cameraModel"] = m.CameraModel
	}
	if m.Orientation != 0 {
		fields["orientation"] = strconv.Itoa(m.Orientation)
	}
	return fields
}

// Dimensions decodes only the image header and returns pixel width and
// height.
func Dimensions(handle filetree.FileHandle) (int, int, error) {
	r, err := handle.Open()
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", handle.Name(), err)
	}
	defer r.Close()

	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("read dimensions of %s: %w", handle.Name(), err)
	}
	return cfg.Width, cfg.Height, nil
}

// Extract reads embedded EXIF metadata. Images without EXIF return an error;
// callers treat it as an empty result, not a failure.
func Extract(handle filetree.FileHandle) (Metadata, error) {
	r, err := handle.Open()
	if err != nil {
		return Metadata{}, fmt.Errorf("open %s: %w", handle.Name(), err)
	}
	defer r.Close()

	x, err := exif.Decode(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("decode exif of %s: %w", handle.Name(), err)
	}

	var meta Metadata
	if captured, err := x.DateTime(); err == nil {
		meta.CapturedAt = captured
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if value, err := tag.StringVal(); err == nil {
			meta.CameraMake = strings.TrimSpace(value)
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if value, err := tag.StringVal(); err == nil {
			meta.CameraModel = strings.TrimSpace(value)
		}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if value, err := tag.Int(0); err == nil {
			meta.Orientation = value
		}
	}
	return meta, nil
}
