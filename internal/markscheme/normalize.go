package markscheme

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/gradeflow/gradeflow/internal/model"
)

var digitsRe = regexp.MustCompile(`\d+`)

// canonicalKey maps key spellings like "Question  Number", "question-text" or
// "marking scheme (Total = 5)" onto a canonical field name. Only letters
// participate so punctuation and totals in the key are ignored.
func canonicalKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	k := b.String()
	switch {
	case strings.HasPrefix(k, "questionnumber"):
		return "questionnumber"
	case strings.HasPrefix(k, "questiontext"), k == "question":
		return "questiontext"
	case strings.HasPrefix(k, "answertemplate"), k == "answer":
		return "answertemplate"
	case strings.HasPrefix(k, "markingscheme"):
		return "markingscheme"
	default:
		return ""
	}
}

// normalizeItem converts one decoded JSON object into a MarkSchemeQuestion,
// accepting key and value variants: numbers as strings, dict-valued marking
// schemes, and scalar marking schemes.
func normalizeItem(item map[string]any) (model.MarkSchemeQuestion, bool) {
	var q model.MarkSchemeQuestion
	for key, val := range item {
		switch canonicalKey(key) {
		case "questionnumber":
			n, ok := coerceNumber(val)
			if !ok {
				return q, false
			}
			q.QuestionNumber = n
		case "questiontext":
			q.QuestionText = strings.TrimSpace(fmt.Sprintf("%v", val))
		case "answertemplate":
			if val != nil {
				q.AnswerTemplate = strings.TrimSpace(fmt.Sprintf("%v", val))
			}
		case "markingscheme":
			q.MarkingScheme = coerceScheme(val)
		}
	}
	if q.QuestionNumber == 0 || q.QuestionText == "" {
		return q, false
	}
	if q.MarkingScheme == nil {
		q.MarkingScheme = []string{}
	}
	return q, true
}

// coerceNumber accepts ints, floats, and strings containing digits.
func coerceNumber(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		if m := digitsRe.FindString(t); m != "" {
			n, err := strconv.Atoi(m)
			return n, err == nil
		}
	}
	return 0, false
}

// coerceScheme normalizes a marking scheme to a bullet list. Dict values
// become "<key>: <value>" entries in key order; scalars become a single
// bullet.
func coerceScheme(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s := strings.TrimSpace(fmt.Sprintf("%v", e))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, fmt.Sprintf("%s: %v", k, t[k]))
		}
		return out
	case nil:
		return []string{}
	default:
		s := strings.TrimSpace(fmt.Sprintf("%v", t))
		if s == "" {
			return []string{}
		}
		return []string{s}
	}
}

func parseFloatDefault(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
