package pdf

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// DefaultRenderDPI is the rasterization density for handwritten sheets.
const DefaultRenderDPI = 300

// Renderer rasterizes PDF pages to PNG for the multimodal transcription path.
type Renderer struct {
	DPI float64
}

// RenderPNG renders every page of the document at the configured DPI.
func (r Renderer) RenderPNG(path string) ([][]byte, error) {
	dpi := r.DPI
	if dpi <= 0 {
		dpi = DefaultRenderDPI
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering: %w", err)
	}
	defer doc.Close()

	pages := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}
