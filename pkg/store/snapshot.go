package store

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const snapshotFormat = "glacia-store"
const snapshotVersion = 1

type manifest struct {
	Format  string         `json:"format"`
	Version int            `json:"version"`
	Saved   time.Time      `json:"saved"`
	Tables  map[string]int `json:"tables"`
}

// OpenSnapshot returns a Memory store that is loaded from path if the file
// exists and rewritten to it after every commit.
func OpenSnapshot(path string) (*Memory, error) {
	m := NewMemory()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := m.RestoreFrom(data); err != nil {
			return nil, fmt.Errorf("restore %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	m.persist = func(tables tableData) error {
		data, err := hibernate(tables)
		if err != nil {
			return err
		}
		return writeFileAtomic(path, data)
	}
	return m, nil
}

// HibernateTo serializes every table into a zip archive: a manifest plus one
// JSON document per table mapping id to record.
func (m *Memory) HibernateTo() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return hibernate(m.tables)
}

// RestoreFrom replaces the store contents with a HibernateTo archive.
func (m *Memory) RestoreFrom(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	fileMap := make(map[string]*zip.File)
	for _, f := range zr.File {
		fileMap[f.Name] = f
	}

	raw, err := readZipEntry(fileMap, "manifest.json")
	if err != nil {
		return err
	}
	var man manifest
	if err := json.Unmarshal(raw, &man); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	if man.Format != snapshotFormat || man.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot %s v%d", man.Format, man.Version)
	}

	tables := make(tableData)
	for _, t := range AllTables {
		tables[t] = make(map[string][]byte)
		raw, err := readZipEntry(fileMap, tableEntry(t))
		if err != nil {
			return err
		}
		var rows map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return fmt.Errorf("failed to parse table %s: %w", t, err)
		}
		for id, row := range rows {
			tables[t][id] = []byte(row)
		}
	}

	m.mu.Lock()
	m.tables = tables
	m.mu.Unlock()
	return nil
}

func hibernate(tables tableData) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	man := manifest{Format: snapshotFormat, Version: snapshotVersion, Saved: time.Now().UTC(), Tables: map[string]int{}}
	for _, t := range AllTables {
		rows := make(map[string]json.RawMessage, len(tables[t]))
		for id, raw := range tables[t] {
			rows[id] = raw
		}
		if err := writeZipEntry(zw, tableEntry(t), rows); err != nil {
			return nil, err
		}
		man.Tables[string(t)] = len(rows)
	}
	if err := writeZipEntry(zw, "manifest.json", man); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func tableEntry(t Table) string { return "tables/" + string(t) + ".json" }

func writeZipEntry(zw *zip.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("missing %s in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
