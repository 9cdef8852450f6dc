package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

const (
	snapshotExt   = ".parquet"
	metaKindKey   = "insightq.kind"
	metaIDKey     = "insightq.id"
	readBatchSize = 1024
)

// SnapshotPath returns the snapshot file path of dataset id inside dir
func SnapshotPath(dir, id string) string {
	return filepath.Join(dir, id+snapshotExt)
}

// SaveSnapshot writes ds to dir as a parquet file.
//
// The file is written to a temporary name and renamed into place, so a crash
// never leaves a truncated snapshot behind. The dataset id and kind are
// stored in the file's key/value metadata.
func SaveSnapshot(dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ds.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	opts := []parquet.WriterOption{
		parquet.KeyValueMetadata(metaKindKey, string(ds.Kind)),
		parquet.KeyValueMetadata(metaIDKey, ds.ID),
		parquet.Compression(&parquet.Zstd),
	}

	switch ds.Kind {
	case KindSections:
		err = writeRows[Section](tmp, ds.Rows, opts...)
	case KindRooms:
		err = writeRows[Room](tmp, ds.Rows, opts...)
	default:
		err = fmt.Errorf("unknown dataset kind %q", ds.Kind)
	}
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write snapshot %s: %w", ds.ID, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot %s: %w", ds.ID, err)
	}

	if err := os.Rename(tmpPath, SnapshotPath(dir, ds.ID)); err != nil {
		return fmt.Errorf("failed to publish snapshot %s: %w", ds.ID, err)
	}
	return nil
}

// LoadSnapshot reads a dataset from a parquet snapshot file
func LoadSnapshot(path string) (*Dataset, error) {
	file, pqFile, err := openSnapshot(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	kind, err := snapshotKind(path, pqFile)
	if err != nil {
		return nil, err
	}

	id, ok := pqFile.Lookup(metaIDKey)
	if !ok {
		id = strings.TrimSuffix(filepath.Base(path), snapshotExt)
	}

	var rows []Record
	switch kind {
	case KindSections:
		rows, err = readRows[Section](pqFile)
	case KindRooms:
		rows, err = readRows[Room](pqFile)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	return &Dataset{ID: id, Kind: kind, Rows: rows}, nil
}

// openSnapshot opens path as a parquet file. The caller closes the returned
// os.File once done with the parquet file.
func openSnapshot(path string) (*os.File, *parquet.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return file, pqFile, nil
}

func snapshotKind(path string, pqFile *parquet.File) (Kind, error) {
	kindName, ok := pqFile.Lookup(metaKindKey)
	if !ok {
		return "", fmt.Errorf("snapshot %s has no %s metadata", path, metaKindKey)
	}
	kind, err := ParseKind(kindName)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", path, err)
	}
	return kind, nil
}

// LoadSnapshots reads every snapshot in dir.
// A missing dir yields no datasets and no error.
func LoadSnapshots(dir string) ([]*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}

	var datasets []*Dataset
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != snapshotExt {
			continue
		}
		ds, err := LoadSnapshot(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// DeleteSnapshot removes the snapshot of dataset id from dir.
// Deleting a snapshot that does not exist is not an error.
func DeleteSnapshot(dir, id string) error {
	err := os.Remove(SnapshotPath(dir, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	return nil
}

func writeRows[T Record](w io.Writer, rows []Record, opts ...parquet.WriterOption) error {
	typed := make([]T, 0, len(rows))
	for i, row := range rows {
		v, ok := row.(T)
		if !ok {
			return fmt.Errorf("row %d has unexpected type %T", i, row)
		}
		typed = append(typed, v)
	}

	writer := parquet.NewGenericWriter[T](w, opts...)
	if _, err := writer.Write(typed); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func readRows[T Record](pqFile *parquet.File) ([]Record, error) {
	reader := parquet.NewGenericReader[T](pqFile)
	defer func() { _ = reader.Close() }()

	rows := make([]Record, 0, reader.NumRows())
	buf := make([]T, readBatchSize)
	for {
		n, err := reader.Read(buf)
		for _, v := range buf[:n] {
			rows = append(rows, v)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return rows, nil
}
