package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vencenty/photo-uploader/crop"
)

// EngineCropper is an implementation of the Cropper interface
// using the crop engine. It probes the source, reconciles the print aspect
// ratio with the image orientation, plans the crop and exports it.
type EngineCropper struct {
	Exporter *crop.Exporter
	Sizes    *SizeCatalog
}

func NewEngineCropper(loader crop.SourceLoader, sizes *SizeCatalog) *EngineCropper {
	return &EngineCropper{
		Exporter: crop.NewExporter(loader),
		Sizes:    sizes,
	}
}

// aspect resolves the requested ratio: an explicit aspect wins over a size name.
func (c *EngineCropper) aspect(op ExportOperation) (float64, error) {
	if op.Aspect > 0 {
		return op.Aspect, nil
	}
	if op.Size == "" {
		return 0, fmt.Errorf("export of %s needs a size or an aspect", op.Filename)
	}
	if _, ok := c.Sizes.Lookup(op.Size); !ok {
		return 0, fmt.Errorf("unknown print size %q, have %s", op.Size, strings.Join(c.Sizes.Names(), ", "))
	}
	return c.Sizes.AspectFor(op.Size), nil
}

func (c *EngineCropper) Crop(ctx context.Context, op ExportOperation) (*crop.Blob, error) {
	requested, err := c.aspect(op)
	if err != nil {
		return nil, err
	}
	src, err := crop.Probe(ctx, c.Exporter.Loader, op.Filename)
	if err != nil {
		return nil, err
	}

	choice := crop.Reconcile(src.NaturalWidth, src.NaturalHeight, requested)
	if op.Invert != nil && *op.Invert != choice.Inverted {
		choice = choice.Toggle()
	}

	var preview crop.Size
	if op.Preview != nil {
		preview = *op.Preview
	}
	edit := op.Edit
	if edit.Zoom == 0 {
		edit.Zoom = 1
	}
	zoom := crop.ZoomRangeFor(src.NaturalWidth, preview)
	geo, err := crop.Planner{Zoom: zoom}.Plan(src, preview, edit, choice.Effective)
	if err != nil {
		return nil, err
	}
	geo.Inverted = choice.Inverted

	log.Ctx(ctx).Debug().
		Str("filename", op.Filename).
		Stringer("rect", geo.PixelRect).
		Float64("aspect", choice.Effective).
		Bool("inverted", choice.Inverted).
		Msg("planned crop")

	quality := op.Quality
	if quality == 0 {
		quality = crop.DefaultQuality
	}
	return c.Exporter.Export(ctx, src, geo, edit.Rotation, edit.Adjustments, quality)
}
