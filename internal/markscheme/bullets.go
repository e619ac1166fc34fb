package markscheme

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gradeflow/gradeflow/internal/model"
)

var (
	questionHeaderRe = regexp.MustCompile(`(?im)^\s*question\s+(\d+)\b[.:]?\s*(.*)$`)
	answerCueRe      = regexp.MustCompile(`(?i)^\s*(answer\s*template|model\s*answer|answer)\b[:.]?\s*(.*)$`)
	schemeCueRe      = regexp.MustCompile(`(?i)^\s*marking\s*scheme\b.*?[:.]?\s*$`)
	bulletMarkRe     = regexp.MustCompile(`^[-*\x{2022}\x{25AA}\x{25BA}]\s*`)
	marksCueRe       = regexp.MustCompile(`\(\d+(?:\.\d+)?\s*marks?\)`)
)

// parseBullets is the loose fallback: "Question N" headers followed by free
// text, with answer template and marking scheme sections found by keyword
// cues and the scheme split into bullets.
func parseBullets(text string) []model.MarkSchemeQuestion {
	body := stripBanners(text)
	headers := questionHeaderRe.FindAllStringSubmatchIndex(body, -1)
	if len(headers) == 0 {
		return nil
	}

	qs := make([]model.MarkSchemeQuestion, 0, len(headers))
	for i, h := range headers {
		num, err := strconv.Atoi(body[h[2]:h[3]])
		if err != nil {
			return nil
		}
		rest := strings.TrimSpace(body[h[4]:h[5]])

		end := len(body)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		content := body[h[1]:end]

		q := splitSections(num, rest, content)
		if q.QuestionText == "" {
			return nil
		}
		qs = append(qs, q)
	}
	return qs
}

// splitSections walks a question's content line by line, moving between the
// question text, answer template, and marking scheme as cues appear.
func splitSections(num int, headerRest, content string) model.MarkSchemeQuestion {
	q := model.MarkSchemeQuestion{QuestionNumber: num, MarkingScheme: []string{}}

	var questionLines, answerLines, schemeLines []string
	if headerRest != "" {
		questionLines = append(questionLines, headerRest)
	}

	section := "question"
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if schemeCueRe.MatchString(trimmed) {
			section = "scheme"
			continue
		}
		if section == "question" {
			if m := answerCueRe.FindStringSubmatch(trimmed); m != nil {
				section = "answer"
				if v := strings.TrimSpace(m[2]); v != "" {
					answerLines = append(answerLines, v)
				}
				continue
			}
		}
		switch section {
		case "question":
			questionLines = append(questionLines, trimmed)
		case "answer":
			answerLines = append(answerLines, trimmed)
		case "scheme":
			schemeLines = append(schemeLines, trimmed)
		}
	}

	q.QuestionText = strings.Join(questionLines, " ")
	q.AnswerTemplate = strings.Join(answerLines, " ")
	q.MarkingScheme = splitBullets(schemeLines)
	return q
}

// splitBullets starts a new bullet at a list marker or at a "(N marks)" cue;
// other lines continue the previous bullet.
func splitBullets(lines []string) []string {
	var bullets []string
	for _, line := range lines {
		stripped := bulletMarkRe.ReplaceAllString(line, "")
		isNew := stripped != line || marksCueRe.MatchString(line) || len(bullets) == 0
		if isNew {
			bullets = append(bullets, strings.TrimSpace(stripped))
		} else {
			bullets[len(bullets)-1] += " " + strings.TrimSpace(line)
		}
	}
	return bullets
}
