package markscheme

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/gradeflow/gradeflow/internal/model"
)

var (
	kvLineRe  = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 _\-()=]*?)\s*:\s*(.*)$`)
	bulletKey = regexp.MustCompile(`^[A-Z]\s*\(`)
)

// parseKeyValue handles semi-structured text of the form:
//
//	Question Number: 1
//	Question Text: ...
//	Answer Template: ...
//	Marking Scheme:
//	  A (2): first point
//	  B (3): second point
//
// Blocks are split on lines whose key normalizes to "questionnumber".
func parseKeyValue(text string) []model.MarkSchemeQuestion {
	lines := strings.Split(stripBanners(text), "\n")

	type block struct {
		num  int
		body []string
	}
	var blocks []block
	for _, line := range lines {
		m := kvLineRe.FindStringSubmatch(line)
		if m != nil && canonicalKey(m[1]) == "questionnumber" {
			if n, ok := coerceNumber(m[2]); ok {
				blocks = append(blocks, block{num: n})
				continue
			}
		}
		if len(blocks) > 0 {
			blocks[len(blocks)-1].body = append(blocks[len(blocks)-1].body, line)
		}
	}
	if len(blocks) == 0 {
		return nil
	}

	qs := make([]model.MarkSchemeQuestion, 0, len(blocks))
	for _, b := range blocks {
		q := model.MarkSchemeQuestion{QuestionNumber: b.num, MarkingScheme: []string{}}
		fields := splitFields(b.body)
		if v, ok := fields["questiontext"]; ok {
			q.QuestionText = strings.TrimSpace(strings.Join(v, " "))
		}
		if v, ok := fields["answertemplate"]; ok {
			q.AnswerTemplate = strings.TrimSpace(strings.Join(v, " "))
		}
		if v, ok := fields["markingscheme"]; ok {
			q.MarkingScheme = parseSchemeField(v)
		}
		if q.QuestionText == "" {
			return nil
		}
		qs = append(qs, q)
	}
	return qs
}

// splitFields groups a block's lines under the canonical key that opened
// them; a field runs until the next recognized key line.
func splitFields(lines []string) map[string][]string {
	fields := make(map[string][]string)
	current := ""
	for _, line := range lines {
		if m := kvLineRe.FindStringSubmatch(line); m != nil {
			if key := canonicalKey(m[1]); key != "" {
				current = key
				if v := strings.TrimSpace(m[2]); v != "" {
					fields[current] = append(fields[current], v)
				}
				continue
			}
		}
		if current != "" && strings.TrimSpace(line) != "" {
			fields[current] = append(fields[current], line)
		}
	}
	return fields
}

// parseSchemeField reads a marking scheme value: either a JSON-style string
// array or an indented block where each line opening like `A (2)` is one
// bullet and other lines continue the previous bullet.
func parseSchemeField(lines []string) []string {
	joined := strings.TrimSpace(strings.Join(lines, "\n"))
	if strings.HasPrefix(joined, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(joined), &arr); err == nil {
			return trimAll(arr)
		}
		if err := json.Unmarshal([]byte(repairQuotes(joined)), &arr); err == nil {
			return trimAll(arr)
		}
		// Last resort: strip the brackets and split on quoted boundaries.
		inner := strings.Trim(joined, "[]")
		var out []string
		for _, part := range strings.Split(inner, `",`) {
			part = strings.Trim(strings.TrimSpace(part), `"`)
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	var bullets []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if bulletKey.MatchString(trimmed) || len(bullets) == 0 {
			bullets = append(bullets, trimmed)
		} else {
			bullets[len(bullets)-1] += " " + trimmed
		}
	}
	return bullets
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
