package markscheme

import (
	"encoding/json"
	"strings"

	"github.com/gradeflow/gradeflow/internal/model"
)

// parseJSONEmbedded handles mark schemes whose body is a JSON array of
// question objects, typically pasted from an LLM with markdown fences and
// sometimes with unescaped quotes inside string values.
func parseJSONEmbedded(text string) []model.MarkSchemeQuestion {
	body := stripBanners(text)

	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end <= start {
		return nil
	}
	raw := normalizeWhitespace(body[start : end+1])

	var items []map[string]any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		repaired := repairQuotes(raw)
		if err := json.Unmarshal([]byte(repaired), &items); err != nil {
			return nil
		}
	}

	qs := make([]model.MarkSchemeQuestion, 0, len(items))
	for _, item := range items {
		q, ok := normalizeItem(item)
		if !ok {
			return nil
		}
		qs = append(qs, q)
	}
	return qs
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, " ", " ")
	return s
}

// repairQuotes escapes double quotes that appear inside JSON string values.
// A quote is treated as a closing delimiter only when the next non-whitespace
// character is one of `:,}]` or the input ends; every other quote seen while
// inside a string is content and gets escaped.
func repairQuotes(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 16)

	inString := false
	escaped := false
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if escaped {
			out.WriteRune(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			out.WriteRune(c)
			if inString {
				escaped = true
			}
		case '"':
			if !inString {
				inString = true
				out.WriteRune(c)
				break
			}
			if closesString(runes, i+1) {
				inString = false
				out.WriteRune(c)
			} else {
				out.WriteString(`\"`)
			}
		default:
			out.WriteRune(c)
		}
	}
	return out.String()
}

// closesString reports whether the first non-whitespace rune at or after pos
// is a JSON structural character that may follow a closing quote.
func closesString(runes []rune, pos int) bool {
	for i := pos; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':', ',', '}', ']':
			return true
		default:
			return false
		}
	}
	return true // end of input
}
