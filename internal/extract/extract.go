package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ResumeText extracts plain text from an uploaded resume. Only PDF is
// accepted at the handler layer, so only PDF is handled here.
func ResumeText(data []byte, mimeType string) (string, error) {
	if mimeType != "application/pdf" {
		return "", fmt.Errorf("unsupported mime type: %s", mimeType)
	}
	return extractPDF(data)
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // keep whatever the other pages yielded
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("no extractable text in pdf")
	}
	return out, nil
}
