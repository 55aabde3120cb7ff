package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetPathInfo resolves relPath to an absolute path and the directory that
// holds it, which is where #include lookups start.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// Source is a program file read from disk.
type Source struct {
	Text     string
	FullPath string
	BaseDir  string
}

// ReadSource reads a glacia source file.
func ReadSource(relPath string) (*Source, error) {
	fullPath, baseDir, err := GetPathInfo(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	return &Source{Text: string(data), FullPath: fullPath, BaseDir: baseDir}, nil
}
