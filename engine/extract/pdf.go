package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF extracts plain text from every page, pages joined with newlines.
// Pages that fail to decode are skipped rather than failing the document.
func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: open pdf %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
