// Package raster turns a compiled artifact into per-page render
// descriptions: display dimensions plus the affine transform that maps
// region-map coordinates onto the rendered page.
//
// Actual pixel rendering is a display concern and lives behind the
// Rasterizer interface; the default implementation derives everything
// it needs from page geometry alone, so the rest of the engine works
// the same whether pages are drawn as bitmaps or as terminal cells.
package raster

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/texmirror/internal/sync/geometry"
	"github.com/dshills/texmirror/internal/sync/regionmap"
)

// ErrRasterization indicates a page could not be rendered. Sync
// highlighting is unavailable until the next successful render, but the
// artifact itself stays valid.
var ErrRasterization = errors.New("raster: page render failed")

// PageRender describes one rendered page at a chosen display scale.
type PageRender struct {
	Page          int
	NativeWidth   float64
	NativeHeight  float64
	DisplayWidth  float64
	DisplayHeight float64

	// Transform maps region-map coordinates on this page to display
	// coordinates, including the y-axis flip.
	Transform geometry.Affine
}

// Rasterizer renders the pages of a compiled artifact at a display
// scale.
type Rasterizer interface {
	Render(ctx context.Context, pdf []byte, rm *regionmap.Map, scale float64) ([]PageRender, error)
}

// ScaleRasterizer derives page renders purely from region-map page
// geometry. It performs no PDF decoding; the PDF bytes are accepted so
// a pixel-producing implementation can slot in behind the same
// interface.
type ScaleRasterizer struct{}

// NewScaleRasterizer creates a geometry-only rasterizer.
func NewScaleRasterizer() *ScaleRasterizer {
	return &ScaleRasterizer{}
}

// Render produces one PageRender per page in the region map, in page
// order. A non-positive scale or a page with degenerate dimensions is a
// rasterization failure.
func (r *ScaleRasterizer) Render(ctx context.Context, pdf []byte, rm *regionmap.Map, scale float64) ([]PageRender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale %v", ErrRasterization, scale)
	}
	if rm == nil || len(rm.Pages) == 0 {
		return nil, fmt.Errorf("%w: no page geometry", ErrRasterization)
	}

	out := make([]PageRender, 0, len(rm.Pages))
	for _, pg := range rm.Pages {
		if pg.Width <= 0 || pg.Height <= 0 {
			return nil, fmt.Errorf("%w: page %d has dimensions %vx%v",
				ErrRasterization, pg.Page, pg.Width, pg.Height)
		}
		out = append(out, PageRender{
			Page:          pg.Page,
			NativeWidth:   pg.Width,
			NativeHeight:  pg.Height,
			DisplayWidth:  pg.Width * scale,
			DisplayHeight: pg.Height * scale,
			Transform:     geometry.PageFlip(scale, pg.Height),
		})
	}
	return out, nil
}
