package pdf

import (
	"log/slog"
	"sort"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/gradeflow/gradeflow/internal/errdefs"
)

// Open reads a PDF into its layout model. Failure to open the file is fatal;
// a page that cannot be parsed yields an entry with empty text, lines, tables
// and images.
func Open(path string) ([]Page, error) {
	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, errdefs.Extractionf("open pdf %s: %v", path, err)
	}
	defer f.Close()

	n := r.NumPage()
	if n == 0 {
		return nil, errdefs.Extractionf("pdf %s has no pages", path)
	}

	images, err := extractImages(path)
	if err != nil {
		// Image layer is best effort: pages still parse without it.
		slog.Debug("image extraction failed", "path", path, "error", err)
	}

	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		page := readPage(r, i)
		page.Images = images[i]
		pages = append(pages, page)
	}
	return pages, nil
}

func readPage(r *lpdf.Reader, num int) (page Page) {
	page = Page{Number: num}
	// Malformed content streams panic inside the parser; such a page
	// degrades to an empty entry instead of failing the document.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("unreadable pdf page", "page", num, "panic", rec)
			page = Page{Number: num}
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return page
	}
	page.Width, page.Height = mediaBox(p)

	content := p.Content()
	words := wordsFromContent(content.Text, page.Height)
	rows := groupRows(words)

	rects := make([]BBox, 0, len(content.Rect))
	for _, rc := range content.Rect {
		rects = append(rects, BBox{
			X0:     rc.Min.X,
			Top:    page.Height - rc.Max.Y,
			X1:     rc.Max.X,
			Bottom: page.Height - rc.Min.Y,
		})
	}

	page.Tables = detectTables(rects, words, page.Width, page.Height)
	page.Lines = rowsToLines(rows)
	page.Text = pageText(rows, page.Tables)
	return page
}

// mediaBox resolves the page dimensions, walking up the page tree for
// inherited attributes. Defaults to US Letter when absent.
func mediaBox(p lpdf.Page) (w, h float64) {
	v := p.V
	for !v.IsNull() {
		if mb := v.Key("MediaBox"); !mb.IsNull() && mb.Len() == 4 {
			x0, y0 := mb.Index(0).Float64(), mb.Index(1).Float64()
			x1, y1 := mb.Index(2).Float64(), mb.Index(3).Float64()
			return x1 - x0, y1 - y0
		}
		v = v.Key("Parent")
	}
	return 612, 792
}

// wordsFromContent converts glyph runs (PDF origin: bottom-left) into words
// in page coordinates, merging runs that sit on one row with no visible gap.
func wordsFromContent(texts []lpdf.Text, pageH float64) []word {
	type frag struct {
		w    word
		size float64
	}
	buckets := make(map[float64][]frag)
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		fw := word{
			x0:     t.X,
			x1:     t.X + t.W,
			top:    pageH - t.Y - t.FontSize,
			bottom: pageH - t.Y,
			text:   t.S,
		}
		key := roundTop(fw.top)
		buckets[key] = append(buckets[key], frag{w: fw, size: t.FontSize})
	}

	var words []word
	for _, frags := range buckets {
		sort.Slice(frags, func(i, j int) bool { return frags[i].w.x0 < frags[j].w.x0 })
		var cur *word
		var curSize float64
		for _, f := range frags {
			if cur != nil && f.w.x0-cur.x1 <= joinGap(curSize) {
				cur.text += f.w.text
				cur.x1 = max(cur.x1, f.w.x1)
				cur.bottom = max(cur.bottom, f.w.bottom)
				continue
			}
			if cur != nil {
				words = append(words, *cur)
			}
			w := f.w
			cur = &w
			curSize = f.size
		}
		if cur != nil {
			words = append(words, *cur)
		}
	}
	return words
}

func joinGap(fontSize float64) float64 {
	if fontSize <= 0 {
		return 1.0
	}
	return fontSize * 0.3
}
