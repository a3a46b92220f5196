package main

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/vencenty/photo-uploader/crop"
)

type Operations = []Operation

type Operation struct {
	Export *ExportOperation
	Pick   *PickOperation
}

// unmarshal
func (o *Operation) UnmarshalJSON(data []byte) error {
	var op struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &op); err != nil {
		return fmt.Errorf("failed to unmarshal operation: %w", err)
	}

	switch op.Type {
	case "export":
		var export ExportOperation
		if err := json.Unmarshal(data, &export); err != nil {
			return fmt.Errorf("failed to unmarshal export operation: %w", err)
		}
		o.Export = &export
	case "pick":
		var pick PickOperation
		if err := json.Unmarshal(data, &pick); err != nil {
			return fmt.Errorf("failed to unmarshal pick operation: %w", err)
		}
		o.Pick = &pick
	default:
		return fmt.Errorf("unknown operation %q", op.Type)
	}
	return nil
}

func (o Operation) MarshalJSON() ([]byte, error) {
	switch {
	case o.Export != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*ExportOperation
		}{"export", o.Export})
	case o.Pick != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*PickOperation
		}{"pick", o.Pick})
	}
	return []byte("null"), nil
}

// ExportOperation crops one file for a print size.
type ExportOperation struct {
	Filename string `json:"filename"`
	// Size names an entry of the print-size catalog. Aspect, when set, overrides it.
	Size   string  `json:"size,omitempty"`
	Aspect float64 `json:"aspect,omitempty"`
	// Invert forces the reciprocal aspect on or off instead of the orientation-based choice.
	Invert  *bool          `json:"invert,omitempty"`
	Edit    crop.EditState `json:"edit"`
	Preview *crop.Size     `json:"preview,omitempty"`
	Quality float64        `json:"quality,omitempty"`
}

func (e ExportOperation) String() string {
	s := e.Edit
	a := s.Adjustments
	invert := "auto"
	if e.Invert != nil {
		invert = "off"
		if *e.Invert {
			invert = "on"
		}
	}
	preview := "none"
	if e.Preview != nil {
		preview = fmt.Sprintf("%.2fx%.2f", e.Preview.Width, e.Preview.Height)
	}
	return fmt.Sprintf("export(size=%s,aspect=%.4f,invert=%s,preview=%s,x=%.2f,y=%.2f,zoom=%.2f,rot=%.1f,b=%d,c=%d,s=%d,q=%.2f)",
		e.Size, e.Aspect, invert, preview, s.Offset.X, s.Offset.Y, s.Zoom, s.Rotation, a.Brightness, a.Contrast, a.Saturation, e.Quality)
}

func (e ExportOperation) ID() string {
	m := md5.New()
	_, err := m.Write([]byte(e.String()))
	if err != nil {
		log.Error().Err(err).Msg("failed to hash export string")
		return ""
	}
	return fmt.Sprintf("%x", m.Sum(nil))
}

type PickOperation struct {
	Filename string `json:"filename"`
}

// Cropper turns an export operation into an encoded image.
type Cropper interface {
	Crop(ctx context.Context, op ExportOperation) (*crop.Blob, error)
}

type OperationExecutor struct {
	BaseDir    string
	OutputDir  string
	Cropper    Cropper
	Compressor crop.Compressor
}

func (r OperationExecutor) Exec(ctx context.Context, ops []Operation) error {
	if len(ops) == 0 {
		log.Ctx(ctx).Warn().Msg("no operations to execute")
		return nil
	}

	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.NumCPU())

	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", r.OutputDir, err)
	}
	for _, op := range ops {
		op := op
		pooler.Go(func(ctx context.Context) error {
			if err := r.executeOperation(ctx, op); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Interface("op", op).
					Msg("failed to execute operation")
				return err
			}
			return nil
		})
	}

	if err := pooler.Wait(); err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Msg("finished with errors")
		return err
	}

	return nil
}

func (r OperationExecutor) executeOperation(ctx context.Context, op Operation) error {
	if op.Export != nil {
		return r.executeExport(ctx, *op.Export)
	} else if op.Pick != nil {
		return r.executePick(ctx, *op.Pick)
	}
	return nil
}

func (r OperationExecutor) executeExport(ctx context.Context, op ExportOperation) error {
	log.Ctx(ctx).Info().Str("filename", op.Filename).Str("size", op.Size).Msg("exporting")
	blob, err := r.Cropper.Crop(ctx, op)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", op.Filename, err)
	}

	base := strings.TrimSuffix(filepath.Base(op.Filename), filepath.Ext(op.Filename))
	newName := fmt.Sprintf("%s-%s.jpg", base, op.ID())
	if err := writeFile(filepath.Join(r.OutputDir, newName), blob.Reader()); err != nil {
		return err
	}
	log.Ctx(ctx).Info().
		Str("filename", op.Filename).
		Str("output", newName).
		Int("width", blob.Width).
		Int("height", blob.Height).
		Int("bytes", blob.Size()).
		Msg("exported")
	return nil
}

// executePick copies a file unchanged, or compresses it first when it exceeds the upload limit.
func (r OperationExecutor) executePick(ctx context.Context, op PickOperation) error {
	log.Ctx(ctx).Info().Str("filename", op.Filename).Msg("picking")
	// Picks stay inside BaseDir, like crop.FileLoader.
	sourcePath := filepath.Join(r.BaseDir, filepath.FromSlash(path.Clean("/"+op.Filename)))
	savePath := filepath.Join(r.OutputDir, filepath.Base(op.Filename))

	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", op.Filename, err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(sourcePath)))
	if !r.Compressor.NeedsCompression(info.Size(), mimeType) {
		if err := copyFile(sourcePath, savePath); err != nil {
			return fmt.Errorf("failed to pick file %s: %w", op.Filename, err)
		}
		return nil
	}

	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", op.Filename, err)
	}
	blob, err := r.Compressor.Compress(ctx, img)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", op.Filename, err)
	}
	savePath = strings.TrimSuffix(savePath, filepath.Ext(savePath)) + ".jpg"
	log.Ctx(ctx).Info().
		Str("filename", op.Filename).
		Int64("original_bytes", info.Size()).
		Int("compressed_bytes", blob.Size()).
		Msg("compressed before pick")
	return writeFile(savePath, blob.Reader())
}

func writeFile(path string, r io.Reader) error {
	wf, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer wf.Close()
	if _, err := io.Copy(wf, r); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

func copyFile(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", sourcePath, err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file from %s to %s: %w", sourcePath, destPath, err)
	}

	return nil
}
