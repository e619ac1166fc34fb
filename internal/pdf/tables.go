package pdf

import (
	"sort"
	"strings"
)

const (
	ruleThickness = 2.5  // max thickness of a stroke treated as a rule
	ruleMinLength = 10.0 // min length of a stroke treated as a rule
	ruleSnap      = 2.0  // rules closer than this collapse to one boundary
	clusterGap    = 4.0  // rules within this distance join one table cluster
)

// rule is a thin filled rectangle interpreted as a table line.
type rule struct {
	bbox       BBox
	horizontal bool
}

// detectTables finds ruled tables from the page's vector rectangles: thin
// horizontal and vertical strokes are clustered, and any cluster with at
// least two rules in each direction forms a table grid. Cell text comes from
// the words whose center falls inside the cell. Bounding boxes are clipped to
// the page rectangle; zero-area tables are discarded.
func detectTables(rects []BBox, words []word, pageW, pageH float64) []Table {
	rules := classifyRules(rects)
	if len(rules) == 0 {
		return nil
	}

	var tables []Table
	for _, cluster := range clusterRules(rules) {
		t, ok := buildTable(cluster, words, pageW, pageH)
		if ok {
			tables = append(tables, t)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].BBox.Top < tables[j].BBox.Top })
	return tables
}

func classifyRules(rects []BBox) []rule {
	var rules []rule
	for _, r := range rects {
		w, h := r.Width(), r.Height()
		switch {
		case h <= ruleThickness && w >= ruleMinLength:
			rules = append(rules, rule{bbox: r, horizontal: true})
		case w <= ruleThickness && h >= ruleMinLength:
			rules = append(rules, rule{bbox: r, horizontal: false})
		}
	}
	return rules
}

// clusterRules merges rules whose boxes touch or nearly touch into groups.
func clusterRules(rules []rule) [][]rule {
	parent := make([]int, len(rules))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) { parent[find(i)] = find(j) }

	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			if near(rules[i].bbox, rules[j].bbox, clusterGap) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]rule)
	for i, r := range rules {
		root := find(i)
		groups[root] = append(groups[root], r)
	}
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)
	out := make([][]rule, 0, len(groups))
	for _, root := range roots {
		out = append(out, groups[root])
	}
	return out
}

func near(a, b BBox, gap float64) bool {
	return a.X0-gap <= b.X1 && b.X0-gap <= a.X1 &&
		a.Top-gap <= b.Bottom && b.Top-gap <= a.Bottom
}

func buildTable(cluster []rule, words []word, pageW, pageH float64) (Table, bool) {
	var hs, vs []rule
	bbox := BBox{X0: pageW, Top: pageH}
	for _, r := range cluster {
		if r.horizontal {
			hs = append(hs, r)
		} else {
			vs = append(vs, r)
		}
		bbox.X0 = min(bbox.X0, r.bbox.X0)
		bbox.Top = min(bbox.Top, r.bbox.Top)
		bbox.X1 = max(bbox.X1, r.bbox.X1)
		bbox.Bottom = max(bbox.Bottom, r.bbox.Bottom)
	}
	if len(hs) < 2 || len(vs) < 2 {
		return Table{}, false
	}

	bbox = clipBBox(bbox, pageW, pageH)
	if bbox.Area() == 0 {
		return Table{}, false
	}

	rowBounds := boundaries(hs, func(r rule) float64 { return r.bbox.yCenterOf() })
	colBounds := boundaries(vs, func(r rule) float64 { return r.bbox.xCenterOf() })
	if len(rowBounds) < 2 || len(colBounds) < 2 {
		return Table{}, false
	}

	data := make([][]string, 0, len(rowBounds)-1)
	for ri := 0; ri < len(rowBounds)-1; ri++ {
		cells := make([]string, 0, len(colBounds)-1)
		for ci := 0; ci < len(colBounds)-1; ci++ {
			cell := BBox{
				X0:     colBounds[ci],
				Top:    rowBounds[ri],
				X1:     colBounds[ci+1],
				Bottom: rowBounds[ri+1],
			}
			cells = append(cells, cellText(cell, words))
		}
		data = append(data, cells)
	}
	return Table{BBox: bbox, Data: data}, true
}

func (b BBox) yCenterOf() float64 { return (b.Top + b.Bottom) / 2 }
func (b BBox) xCenterOf() float64 { return (b.X0 + b.X1) / 2 }

// boundaries collapses rule center positions into sorted unique grid lines.
func boundaries(rules []rule, pos func(rule) float64) []float64 {
	vals := make([]float64, 0, len(rules))
	for _, r := range rules {
		vals = append(vals, pos(r))
	}
	sort.Float64s(vals)

	var out []float64
	for _, v := range vals {
		if len(out) == 0 || v-out[len(out)-1] > ruleSnap {
			out = append(out, v)
		}
	}
	return out
}

func cellText(cell BBox, words []word) string {
	var inside []word
	for _, w := range words {
		if cell.Contains(w.xCenter(), w.yCenter()) {
			inside = append(inside, w)
		}
	}
	sort.Slice(inside, func(i, j int) bool {
		if inside[i].top != inside[j].top {
			return inside[i].top < inside[j].top
		}
		return inside[i].x0 < inside[j].x0
	})
	parts := make([]string, 0, len(inside))
	for _, w := range inside {
		parts = append(parts, w.text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// clipBBox clamps a box to the page rectangle.
func clipBBox(b BBox, pageW, pageH float64) BBox {
	b.X0 = max(b.X0, 0)
	b.Top = max(b.Top, 0)
	b.X1 = min(b.X1, pageW)
	b.Bottom = min(b.Bottom, pageH)
	return b
}
