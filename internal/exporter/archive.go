package exporter

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"time"
)

// BuildArchive packages several generated files into one ZIP. Members are
// written in sorted name order so identical inputs produce identical
// archives.
func (b *Builder) BuildArchive(files map[string][]byte) ([]byte, string, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, "", fmt.Errorf("add %s to archive: %w", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, "", fmt.Errorf("write %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("consolidated_export_%s.zip", time.Now().Format("20060102"))
	return buf.Bytes(), filename, nil
}
