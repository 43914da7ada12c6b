package derivatives

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"folio/internal/filetree"
)

// jpegQuality balances size and fidelity for generated derivatives.
const jpegQuality = 85

func decode(handle filetree.FileHandle) (image.Image, error) {
	r, err := handle.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", handle.Name(), err)
	}
	defer r.Close()

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", handle.Name(), err)
	}
	return img, nil
}

// scaleDown fits img within maxPx on its longest edge without upscaling.
func scaleDown(img image.Image, maxPx int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= maxPx && bounds.Dy() <= maxPx {
		return img
	}
	return imaging.Fit(img, maxPx, maxPx, imaging.Lanczos)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// renderSizes produces one re-encoded blob per requested size from a single
// decode.
func renderSizes(handle filetree.FileHandle, sizes []Size) (map[string][]byte, error) {
	img, err := decode(handle)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(sizes))
	for _, size := range sizes {
		blob, err := encodeJPEG(scaleDown(img, size.MaxPx))
		if err != nil {
			return nil, fmt.Errorf("size %s: %w", size.Tag, err)
		}
		out[size.Tag] = blob
	}
	return out, nil
}

// renderPyramid produces a multi-resolution set: the full image, then
// successive halvings until the longest edge fits within tilePx.
func renderPyramid(handle filetree.FileHandle, tilePx int) (map[string][]byte, error) {
	img, err := decode(handle)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte)
	level := 0
	current := img
	for {
		blob, err := encodeJPEG(current)
		if err != nil {
			return nil, fmt.Errorf("pyramid level %d: %w", level, err)
		}
		out[fmt.Sprintf("level-%d", level)] = blob

		bounds := current.Bounds()
		if bounds.Dx() <= tilePx && bounds.Dy() <= tilePx {
			break
		}
		current = imaging.Resize(current, bounds.Dx()/2, 0, imaging.Lanczos)
		level++
	}
	return out, nil
}
