package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"path"
	"testing"
)

// MemHandle is an in-memory filetree.FileHandle implementation for tests.
type MemHandle struct {
	FileName string
	Rel      string
	Mime     string
	Data     []byte
}

func (h *MemHandle) Name() string    { return h.FileName }
func (h *MemHandle) RelPath() string { return h.Rel }
func (h *MemHandle) Size() int64     { return int64(len(h.Data)) }

func (h *MemHandle) MIME() string {
	if h.Mime != "" {
		return h.Mime
	}
	return "application/octet-stream"
}

func (h *MemHandle) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(h.Data)), nil
}

// NewHandle builds a MemHandle whose name is the last path segment.
func NewHandle(rel string, data []byte) *MemHandle {
	return &MemHandle{FileName: path.Base(rel), Rel: rel, Data: data}
}

// PNGBytes encodes a solid-color PNG of the given dimensions.
func PNGBytes(t testing.TB, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0x60, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// ImageHandle builds a MemHandle carrying a generated PNG.
func ImageHandle(t testing.TB, rel string, width, height int) *MemHandle {
	t.Helper()

	h := NewHandle(rel, PNGBytes(t, width, height))
	h.Mime = "image/png"
	return h
}
