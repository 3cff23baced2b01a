// Package export downloads backend-generated reports. Report rendering is
// entirely backend-owned; this package only streams the blob to disk under
// a generated filename.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/risksurface/surf/pkg/api"
)

// timestampLayout matches the filename convention {project}_{tab}_{timestamp}.{ext}.
const timestampLayout = "20060102-150405"

// Filename builds the download filename for a report. Slashes in the project
// fullName are flattened so the name stays a single path element.
func Filename(project string, tab api.Tab, format api.ExportFormat, now time.Time) string {
	flat := strings.ReplaceAll(project, "/", "-")
	return fmt.Sprintf("%s_%s_%s.%s", flat, tab, now.Format(timestampLayout), format)
}

// Download fetches the report for tab/project in the given format and writes
// it into dir, returning the written file's path.
func Download(ctx context.Context, client *api.Client, tab api.Tab, project string, format api.ExportFormat, dir string) (string, error) {
	body, err := client.Export(ctx, tab, project, format)
	if err != nil {
		return "", err
	}
	defer body.Close()

	path := filepath.Join(dir, Filename(project, tab, format, time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing export file: %w", err)
	}
	return path, nil
}
