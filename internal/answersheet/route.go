package answersheet

import (
	"github.com/gradeflow/gradeflow/internal/model"
	"github.com/gradeflow/gradeflow/internal/pdf"
)

// autoCoverageThreshold is the mean runes-per-page below which an "auto"
// sheet is treated as handwritten: scanned submissions carry little or no
// text layer.
const autoCoverageThreshold = 200

// Route resolves the parser choice for one sheet. Explicit modes win;
// SheetAuto falls back to the text-coverage heuristic.
func Route(mode model.SheetMode, pages []pdf.Page) model.SheetMode {
	switch mode {
	case model.SheetTyped, model.SheetHandwritten:
		return mode
	}
	if pdf.TextCoverage(pages) < autoCoverageThreshold {
		return model.SheetHandwritten
	}
	return model.SheetTyped
}
