package profile

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractResumeText pulls the plain text out of a PDF resume. The result is
// whitespace-normalized per line and suitable for the job history long-form
// field.
func ExtractResumeText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return strings.Join(lines, "\n"), nil
}

// ImportResume extracts text from a PDF resume and stores it as the job
// history block of the personal context, creating the context if needed.
func (m *Manager) ImportResume(userID string, data []byte) error {
	text, err := ExtractResumeText(data)
	if err != nil {
		return err
	}

	existing, err := m.Contexts(userID)
	if err != nil {
		return err
	}

	ctx := Context{}
	if existing.Personal != nil {
		ctx = *existing.Personal
	}
	ctx.User.JobHistoryText = text
	return m.Update(userID, ContextPersonal, ctx)
}
