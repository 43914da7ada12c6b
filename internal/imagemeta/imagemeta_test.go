package imagemeta_test

import (
	"testing"
	"time"

	"folio/internal/imagemeta"
	"folio/internal/testsupport"
)

func TestDimensions(t *testing.T) {
	handle := testsupport.ImageHandle(t, "page.png", 640, 480)
	w, h, err := imagemeta.Dimensions(handle)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 640 || h != 480 {
		t.Fatalf("got %dx%d, want 640x480", w, h)
	}
}

func TestDimensionsRejectsGarbage(t *testing.T) {
	handle := testsupport.NewHandle("junk.png", []byte("not an image"))
	if _, _, err := imagemeta.Dimensions(handle); err == nil {
		t.Fatal("expected error for undecodable bytes")
	}
}

func TestExtractWithoutEXIFErrs(t *testing.T) {
	// Plain PNGs carry no EXIF block; callers downgrade this to "no
	// metadata", so only the error contract matters here.
	handle := testsupport.ImageHandle(t, "page.png", 32, 32)
	if _, err := imagemeta.Extract(handle); err == nil {
		t.Fatal("expected error for image without EXIF")
	}
}

func TestMetadataFields(t *testing.T) {
	meta := imagemeta.Metadata{
		CapturedAt:  time.Date(2019, 4, 2, 10, 30, 0, 0, time.UTC),
		CameraMake:  "Nikon",
		Orientation: 6,
	}
	fields := meta.Fields()
	if fields["cameraMake"] != "Nikon" || fields["orientation"] != "6" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if _, ok := fields["cameraModel"]; ok {
		t.Fatal("empty fields should be omitted")
	}

	if len(imagemeta.Metadata{}.Fields()) != 0 {
		t.Fatal("zero metadata should render no fields")
	}
}
