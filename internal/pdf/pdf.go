// Package pdf turns a PDF file into a layout-aware page model: per-page text,
// line anchors with y-coordinates, ruled tables with bounding boxes, and
// embedded images. Coordinates are top-left origin with y growing downward,
// in PDF points.
package pdf

// BBox is a rectangle in page coordinates.
type BBox struct {
	X0     float64 `json:"x0"`
	Top    float64 `json:"top"`
	X1     float64 `json:"x1"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent.
func (b BBox) Height() float64 { return b.Bottom - b.Top }

// Area returns the rectangle area, zero for degenerate boxes.
func (b BBox) Area() float64 {
	if b.X1 <= b.X0 || b.Bottom <= b.Top {
		return 0
	}
	return b.Width() * b.Height()
}

// Contains reports whether the point (x, y) lies inside the box.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Top && y <= b.Bottom
}

// Line is one text row and its vertical anchor.
type Line struct {
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// Table is a ruled table: its bounding box and cell text row by row.
type Table struct {
	BBox BBox       `json:"bbox"`
	Data [][]string `json:"data"`
}

// Image is an embedded raster image and its placement.
type Image struct {
	BBox BBox   `json:"bbox"`
	Data []byte `json:"-"`
}

// YCenter returns the vertical midpoint of the image.
func (im Image) YCenter() float64 { return (im.BBox.Top + im.BBox.Bottom) / 2 }

// Page is the layout model of a single page. An unreadable page keeps its
// number and dimensions zeroed with empty text, lines, tables and images.
type Page struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text"`
	Lines  []Line  `json:"lines"`
	Tables []Table `json:"tables"`
	Images []Image `json:"images"`
}

// TextCoverage returns the mean rune count of the text layer per page. It is
// the routing heuristic for typed vs handwritten sheets: scanned pages carry
// little or no text layer.
func TextCoverage(pages []Page) float64 {
	if len(pages) == 0 {
		return 0
	}
	total := 0
	for _, p := range pages {
		total += len([]rune(p.Text))
	}
	return float64(total) / float64(len(pages))
}
