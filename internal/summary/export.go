package summary

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
)

// Exporter writes a rendered summary to the local export paths. Both
// operations consume only the Markdown form of the record.
type Exporter struct {
	dir string

	// copyText is swappable in tests (clipboard access needs a display).
	copyText func(text string) error
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, copyText: clipboard.WriteAll}
}

// CopyToClipboard places the Markdown summary on the system clipboard.
func (e *Exporter) CopyToClipboard(markdown string) error {
	if err := e.copyText(markdown); err != nil {
		return fmt.Errorf("copy summary to clipboard: %w", err)
	}
	return nil
}

// WriteFile saves the Markdown summary as <meetingID>.md in the export
// directory and returns the written path.
func (e *Exporter) WriteFile(meetingID, markdown string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(e.dir, meetingID+".md")
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write summary file: %w", err)
	}
	return path, nil
}
