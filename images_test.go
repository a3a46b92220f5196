package main

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/vencenty/photo-uploader/crop"
)

func TestWalkImages(t *testing.T) {
	root := t.TempDir()
	writeImage(t, root, "land.png", 30, 20)
	writeImage(t, root, "nested/tall.jpg", 20, 30)
	writeImage(t, root, "output/done.jpg", 10, 10)

	dir, err := walkImages(root, filepath.Join(root, "output"))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range dir.Files {
		names = append(names, f.Name)
	}
	slices.Sort(names)
	if want := []string{"land.png", "nested/tall.jpg"}; !slices.Equal(names, want) {
		t.Fatalf("got %v, want %v", names, want)
	}

	for _, f := range dir.Files {
		switch f.Name {
		case "land.png":
			if f.Image.Width != 30 || f.Image.Format != "png" || f.Image.Orientation != crop.Landscape {
				t.Errorf("land.png: got %+v", f.Image)
			}
		case "nested/tall.jpg":
			if f.Image.Height != 30 || f.Image.Format != "jpeg" || f.Image.Orientation != crop.Portrait {
				t.Errorf("tall.jpg: got %+v", f.Image)
			}
		}
		if f.SizeBytes == 0 {
			t.Errorf("%s: size not recorded", f.Name)
		}
	}
}
