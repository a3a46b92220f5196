package crop

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/disintegration/imaging"
)

func TestCompressor_NeedsCompression(t *testing.T) {
	c := DefaultCompressor
	tests := []struct {
		size int64
		mime string
		want bool
	}{
		{21 << 20, "image/jpeg", true},
		{20 << 20, "image/png", false},
		{1 << 20, "image/jpeg", false},
		{50 << 20, "application/pdf", false},
		{50 << 20, "", false},
	}
	for _, tt := range tests {
		if got := c.NeedsCompression(tt.size, tt.mime); got != tt.want {
			t.Errorf("NeedsCompression(%d,%q): got %v, want %v", tt.size, tt.mime, got, tt.want)
		}
	}
}

func TestCompressor_FitsAndStopsAtFloor(t *testing.T) {
	img := noise(300, 200)
	c := Compressor{MaxBytes: 1, MaxWidth: 100, MaxHeight: 100, Quality: 0.8, MinQuality: 0.1, Step: 0.1}

	blob, err := c.Compress(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if blob.Width != 100 || blob.Height < 66 || blob.Height > 67 {
		t.Errorf("size: got %dx%d, want 100x66..67", blob.Width, blob.Height)
	}
	floor, err := EncodeJPEG(imaging.Fit(img, 100, 100, imaging.Lanczos), 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(blob.Data, floor) {
		t.Errorf("got %d bytes, want the %d-byte encode at the quality floor", len(blob.Data), len(floor))
	}
}

func TestCompressor_FirstAttemptWhenSmallEnough(t *testing.T) {
	img := noise(50, 40)
	c := DefaultCompressor
	blob, err := c.Compress(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	want, err := EncodeJPEG(img, c.Quality)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(blob.Data, want) {
		t.Error("small image should be encoded once at the starting quality")
	}
	if blob.Width != 50 || blob.Height != 40 {
		t.Errorf("size: got %dx%d, want 50x40", blob.Width, blob.Height)
	}
}

func TestCompressor_Errors(t *testing.T) {
	if _, err := (Compressor{Quality: 0}).Compress(context.Background(), noise(4, 4)); !errors.Is(err, ErrInvalidQuality) {
		t.Errorf("got %v, want InvalidQuality", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := DefaultCompressor.Compress(ctx, noise(4, 4)); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
