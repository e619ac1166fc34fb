package answersheet

import (
	"regexp"

	"github.com/gradeflow/gradeflow/internal/pdf"
)

const emailLocalPart = `[A-Za-z0-9._%+-]+`

// extractEmail looks for the student's email on the first page: a labeled
// "Email: ..." line wins, then any bare address. When domain is non-empty
// only addresses at that domain are accepted.
func extractEmail(pages []pdf.Page, domain string) string {
	if len(pages) == 0 {
		return ""
	}
	text := pages[0].Text

	domainPat := `[A-Za-z0-9.-]+\.[A-Za-z]{2,}`
	if domain != "" {
		domainPat = regexp.QuoteMeta(domain)
	}

	labeled := regexp.MustCompile(`(?i)email:\s*(` + emailLocalPart + `@` + domainPat + `)`)
	if m := labeled.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	bare := regexp.MustCompile(`(?i)(` + emailLocalPart + `@` + domainPat + `)`)
	if m := bare.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
