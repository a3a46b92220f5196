package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vencenty/photo-uploader/crop"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	// A missing .env is fine; anything else is reported.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("photo-uploader"),
		kong.Description("Crop, adjust and export order photos for printing."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "photo-uploader.json", "~/.config/photo-uploader.json"),
	)
	if err := cliCtx.Run(&args.Globals); err != nil {
		return err
	}

	return nil
}

type Globals struct {
	Config  kong.ConfigFlag `help:"Load flags from a JSON config file"`
	Verbose bool            `help:"Enable verbose logging" default:"false" env:"PHOTO_UPLOADER_VERBOSE"`
	Sizes   string          `help:"YAML print-size catalog replacing the built-in one" type:"path" env:"PHOTO_UPLOADER_SIZES"`
}

func (g *Globals) setupLogging() context.Context {
	level := zerolog.InfoLevel
	if g.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).Level(level)
	zerolog.DefaultContextLogger = &log.Logger
	return log.Logger.WithContext(context.Background())
}

func (g *Globals) sizes() (*SizeCatalog, error) {
	if g.Sizes == "" {
		return DefaultSizes(), nil
	}
	return LoadSizes(g.Sizes)
}

type serveCmd struct {
	RootDir  string        `arg:"" help:"Root directory to serve files from" type:"existingdir"`
	Addr     string        `help:"Listen address, a random local port when empty" env:"PHOTO_UPLOADER_ADDR"`
	Open     bool          `help:"Open the browser automatically when the server starts" default:"true" negatable:""`
	JSON     bool          `help:"Output operations in JSON format without executing"`
	Once     bool          `help:"Run the server once and exit after save" default:"true" negatable:""`
	Debounce time.Duration `help:"Quiet period before an edit burst is recorded in history" default:"500ms"`
}

func (cmd *serveCmd) Run(g *Globals) error {
	ctx := g.setupLogging()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	sizes, err := g.sizes()
	if err != nil {
		return err
	}

	outputDir := filepath.Join(cmd.RootDir, "output")
	loader := crop.MultiLoader{
		File: crop.FileLoader{Root: cmd.RootDir},
		HTTP: crop.HTTPLoader{},
	}
	cropper := NewEngineCropper(loader, sizes)
	executor := &OperationExecutor{
		BaseDir:    cmd.RootDir,
		OutputDir:  outputDir,
		Cropper:    cropper,
		Compressor: crop.DefaultCompressor,
	}

	app := NewWebApp(Config{
		RootDir:   cmd.RootDir,
		OutputDir: outputDir,
		Addr:      cmd.Addr,
		Sizes:     sizes,
		Sessions:  NewSessionStore(cropper.Exporter, cmd.Debounce),
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down web application...")
		},
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
			if cmd.Open {
				if err := openBrowser(addr); err != nil {
					log.Error().Err(err).Msg("Failed to open browser")
				}
			}
		},
		OnSave: func(ops Operations) {
			if cmd.JSON {
				printJSONL(ops)
			} else {
				if err := executor.Exec(ctx, ops); err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("Failed to execute operations")
				}
			}

			if cmd.Once {
				cancel()
			}
		},
	})

	if err := app.Run(ctx); err != nil {
		return err
	}

	return nil
}

type exportCmd struct {
	File       string  `arg:"" help:"Image file or http(s) URL to crop"`
	Size       string  `help:"Print size name from the catalog" short:"s"`
	Aspect     float64 `help:"Aspect ratio (width/height), overrides --size"`
	Invert     string  `help:"Force the inverted aspect on or off" enum:"auto,on,off" default:"auto"`
	Rotate     float64 `help:"Rotation in degrees, clockwise" short:"r"`
	Zoom       float64 `help:"Zoom factor" default:"1"`
	OffsetX    float64 `help:"Horizontal pan in preview pixels"`
	OffsetY    float64 `help:"Vertical pan in preview pixels"`
	Mobile     bool    `help:"Interpret offsets against the mobile preview"`
	Brightness int     `help:"Brightness adjustment (-100..100)"`
	Contrast   int     `help:"Contrast adjustment (-100..100)"`
	Saturation int     `help:"Saturation adjustment (-100..100)"`
	Quality    float64 `help:"JPEG quality (0..1]" default:"0.95" short:"q"`
	Out        string  `help:"Output file, defaults to the generated export name" short:"o" type:"path"`
}

func (cmd *exportCmd) Run(g *Globals) error {
	ctx := g.setupLogging()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	sizes, err := g.sizes()
	if err != nil {
		return err
	}
	// Local files are loaded relative to their own directory.
	file, root := cmd.File, "."
	if !strings.HasPrefix(file, "http://") && !strings.HasPrefix(file, "https://") {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		file, root = filepath.Base(abs), filepath.Dir(abs)
	}
	loader := crop.MultiLoader{
		File: crop.FileLoader{Root: root},
		HTTP: crop.HTTPLoader{},
	}
	cropper := NewEngineCropper(loader, sizes)

	op, err := cmd.operation(ctx, loader, file)
	if err != nil {
		return err
	}

	blob, err := cropper.Crop(ctx, op)
	if err != nil {
		return err
	}

	out := cmd.Out
	if out == "" {
		out = blob.Name
	}
	if err := writeFile(out, blob.Reader()); err != nil {
		return err
	}
	log.Ctx(ctx).Info().
		Str("output", out).
		Int("width", blob.Width).
		Int("height", blob.Height).
		Int("bytes", blob.Size()).
		Msg("exported")
	return nil
}

// operation builds the export for file. The preview is always fitted to the
// editor viewport so zoom and offsets mean what they mean in a session.
func (cmd *exportCmd) operation(ctx context.Context, loader crop.SourceLoader, file string) (ExportOperation, error) {
	op := ExportOperation{
		Filename: file,
		Size:     cmd.Size,
		Aspect:   cmd.Aspect,
		Quality:  cmd.Quality,
		Edit: crop.EditState{
			Offset:   crop.Offset{X: cmd.OffsetX, Y: cmd.OffsetY},
			Zoom:     cmd.Zoom,
			Rotation: cmd.Rotate,
			Adjustments: crop.Adjustments{
				Brightness: cmd.Brightness,
				Contrast:   cmd.Contrast,
				Saturation: cmd.Saturation,
			},
		},
	}
	if cmd.Invert != "" && cmd.Invert != "auto" {
		invert := cmd.Invert == "on"
		op.Invert = &invert
	}
	if err := op.Edit.Validate(); err != nil {
		return op, err
	}
	src, err := crop.Probe(ctx, loader, file)
	if err != nil {
		return op, err
	}
	preview := crop.PreviewFit(src.NaturalWidth, src.NaturalHeight, crop.ViewportFor(cmd.Mobile))
	op.Preview = &preview
	return op, nil
}

type sizesCmd struct{}

func (cmd *sizesCmd) Run(g *Globals) error {
	g.setupLogging()
	sizes, err := g.sizes()
	if err != nil {
		return err
	}
	printJSONL(sizes.Sizes)
	return nil
}

type cliArgs struct {
	Globals `embed:""`

	Serve     serveCmd  `cmd:"" default:"withargs" help:"Serve the crop editor for a directory of photos"`
	Export    exportCmd `cmd:"" help:"Crop a single image without the editor"`
	ListSizes sizesCmd  `cmd:"" name:"list-sizes" help:"Print the print-size catalog as JSON lines"`
}

func printJSONL[T any](data []T) {
	enc := json.NewEncoder(os.Stdout)
	for _, item := range data {
		if err := enc.Encode(item); err != nil {
			log.Error().Err(err).Msg("Failed to encode item to JSON")
			continue
		}
	}
}
