package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileKnowledge reads persona playbooks from <dir>/<persona>.md. A missing
// file is an error; the Registry treats any lookup error as "use built-in".
type FileKnowledge struct {
	Dir string
}

// Instructions reads the playbook file for p.
func (f FileKnowledge) Instructions(p Persona) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.Dir, string(p)+".md"))
	if err != nil {
		return "", fmt.Errorf("reading persona playbook: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("persona playbook %s is empty", p)
	}
	return text, nil
}
