package pdf

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/net/html"
)

var stylePtRe = regexp.MustCompile(`(top|left|width|height)\s*:\s*(-?\d+(?:\.\d+)?)pt`)

// extractImages pulls embedded raster images with their placement from the
// positioned HTML rendering of each page. Returns a map keyed by 1-based page
// number.
func extractImages(path string) (map[int][]Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for image layer: %w", err)
	}
	defer doc.Close()

	out := make(map[int][]Image)
	for i := 0; i < doc.NumPage(); i++ {
		page, err := doc.HTML(i, true)
		if err != nil {
			continue
		}
		imgs := imagesFromHTML(page)
		if len(imgs) > 0 {
			out[i+1] = imgs
		}
	}
	return out, nil
}

// imagesFromHTML scans positioned-HTML output for <img> elements carrying a
// data URI and pt-based placement styles.
func imagesFromHTML(page string) []Image {
	var images []Image
	tok := html.NewTokenizer(strings.NewReader(page))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			return images
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tok.TagName()
		if string(name) != "img" || !hasAttr {
			continue
		}

		var src, style string
		for {
			key, val, more := tok.TagAttr()
			switch string(key) {
			case "src":
				src = string(val)
			case "style":
				style = string(val)
			}
			if !more {
				break
			}
		}

		data, ok := decodeDataURI(src)
		if !ok {
			continue
		}
		bbox, ok := bboxFromStyle(style)
		if !ok {
			continue
		}
		images = append(images, Image{BBox: bbox, Data: data})
	}
}

func decodeDataURI(src string) ([]byte, bool) {
	if !strings.HasPrefix(src, "data:") {
		return nil, false
	}
	idx := strings.Index(src, "base64,")
	if idx < 0 {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(src[idx+len("base64,"):])
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func bboxFromStyle(style string) (BBox, bool) {
	vals := make(map[string]float64)
	for _, m := range stylePtRe.FindAllStringSubmatch(style, -1) {
		f, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		vals[m[1]] = f
	}
	top, okT := vals["top"]
	left, okL := vals["left"]
	w, okW := vals["width"]
	h, okH := vals["height"]
	if !okT || !okL || !okW || !okH || w <= 0 || h <= 0 {
		return BBox{}, false
	}
	return BBox{X0: left, Top: top, X1: left + w, Bottom: top + h}, true
}
