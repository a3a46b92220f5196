package crop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// SourceImage references a raster by URL together with its natural size.
type SourceImage struct {
	URL           string `json:"url"`
	NaturalWidth  int    `json:"natural_width"`
	NaturalHeight int    `json:"natural_height"`
}

// SourceLoader fetches and decodes a source. Implementations must apply EXIF orientation
// so that the decoded bounds are the natural size the user sees.
type SourceLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// FileLoader reads sources from a directory. URLs are slash-separated paths
// relative to Root and cannot escape it.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(ctx context.Context, name string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.Join(l.Root, filepath.FromSlash(path.Clean("/"+name)))
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()
	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return img, nil
}

// DefaultMaxSourceBytes caps how much an HTTPLoader will read.
const DefaultMaxSourceBytes = 64 << 20

// HTTPLoader fetches sources anonymously: no cookies, no credentials.
type HTTPLoader struct {
	Client   *http.Client
	MaxBytes int64
}

func (l HTTPLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.User = nil

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	if client.Jar != nil {
		anon := *client
		anon.Jar = nil
		client = &anon
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: %s", u.Redacted(), resp.Status)
	}

	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxSourceBytes
	}
	img, err := imaging.Decode(io.LimitReader(resp.Body, limit), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", u.Redacted(), err)
	}
	return img, nil
}

// MultiLoader sends http(s) URLs to HTTP and everything else to File.
type MultiLoader struct {
	File SourceLoader
	HTTP SourceLoader
}

var errNoLoader = errors.New("no loader for source")

func (l MultiLoader) Load(ctx context.Context, src string) (image.Image, error) {
	next := l.File
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		next = l.HTTP
	}
	if next == nil {
		return nil, fmt.Errorf("%w %q", errNoLoader, src)
	}
	return next.Load(ctx, src)
}

// Probe loads a source once to learn its natural size.
func Probe(ctx context.Context, loader SourceLoader, url string) (SourceImage, error) {
	img, err := loader.Load(ctx, url)
	if err != nil {
		return SourceImage{}, newError(ReasonSourceLoad, "probe", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return SourceImage{}, newError(ReasonSourceLoad, "probe", fmt.Errorf("%s has no pixels", url))
	}
	return SourceImage{URL: url, NaturalWidth: b.Dx(), NaturalHeight: b.Dy()}, nil
}
