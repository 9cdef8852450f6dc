package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/vegasq/insightq"
)

// MaxEntrySize bounds the uncompressed size of a single archive entry
const MaxEntrySize = 64 * 1024 * 1024

func openZip(data []byte) (*zip.Reader, error) {
	if len(data) == 0 {
		return nil, insightq.ValidationErr("archive is empty", nil)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, insightq.ValidationErr("archive is not a valid zip file", map[string]any{"err": err})
	}
	return zr, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if len(data) > MaxEntrySize {
		return nil, insightq.ValidationErr("archive entry too large", map[string]any{"name": f.Name, "max": MaxEntrySize})
	}
	return data, nil
}

// findEntry returns the file entry with the given name
func findEntry(zr *zip.Reader, name string) (*zip.File, bool) {
	for _, f := range zr.File {
		if f.Name == name && !f.FileInfo().IsDir() {
			return f, true
		}
	}
	return nil, false
}
