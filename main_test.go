package main

import (
	"context"
	"testing"

	"github.com/vencenty/photo-uploader/crop"
)

func TestExportCmd_Operation(t *testing.T) {
	root := t.TempDir()
	writeImage(t, root, "a.png", 80, 60)
	loader := crop.FileLoader{Root: root}

	cmd := exportCmd{Aspect: 4.0 / 3, Invert: "auto", Zoom: 0.8, Quality: 0.9}
	op, err := cmd.operation(context.Background(), loader, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if op.Preview == nil || op.Preview.Width <= 0 {
		t.Fatalf("preview should be derived without offsets, got %v", op.Preview)
	}
	if op.Invert != nil {
		t.Errorf("auto invert should stay unset, got %v", *op.Invert)
	}

	// A small source in a desktop viewport gets the wide zoom range, so 0.8 is kept.
	blob, err := NewEngineCropper(loader, DefaultSizes()).Crop(context.Background(), op)
	if err != nil {
		t.Fatal(err)
	}
	if blob.Width != 100 || blob.Height != 75 {
		t.Errorf("got %dx%d, want 100x75", blob.Width, blob.Height)
	}

	cmd.Invert = "on"
	if op, err := cmd.operation(context.Background(), loader, "a.png"); err != nil || op.Invert == nil || !*op.Invert {
		t.Errorf("invert=on: got %+v, %v", op.Invert, err)
	}

	cmd.Zoom = 0
	if _, err := cmd.operation(context.Background(), loader, "a.png"); crop.ReasonOf(err) != crop.ReasonInvalidEditState {
		t.Errorf("zero zoom: got %v, want InvalidEditState", err)
	}
	cmd.Zoom = 1
	if _, err := cmd.operation(context.Background(), loader, "missing.png"); crop.ReasonOf(err) != crop.ReasonSourceLoad {
		t.Errorf("missing file: got %v, want SourceLoadError", err)
	}
}
