//go:build !js

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"glacia/pkg/compiler"
	"glacia/pkg/runner"
	"glacia/pkg/store"
)

func TestImageFileRoundTrip(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	img, err := compiler.Compile(`int main(){ int x = 6; print(x * 7); }`, "", compiler.WithLogger(quiet))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	path := filepath.Join(t.TempDir(), "prog.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := img.Write(f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	loaded, err := readImage(path)
	if err != nil {
		t.Fatalf("readImage: %v", err)
	}
	res, err := runner.Run(context.Background(), runner.WithImage(loaded), runner.WithCapture(), runner.WithLogger(quiet))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"42"}; !slices.Equal(res.Output, want) {
		t.Errorf("output: got %q, want %q", res.Output, want)
	}
}

func TestReadImageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readImage(path); err == nil {
		t.Fatal("readImage accepted garbage")
	}
}

func TestRunClosesStoreOnFailure(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "state.db")
	base := []string{"-config", filepath.Join(dir, "absent.yaml"), "-store", "bolt", "-store-path", db}

	tests := []struct {
		name    string
		args    []string
		stdout  string
		wantErr string
	}{
		{"runtime error", []string{"-e", "int main(){ print(1); print(1 / 0); }"}, "1\n", "division by zero"},
		{"conflicting inputs", []string{"-e", "int main(){}", "-thread", "t1"}, "", "give only one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(append(base, tt.args...), &stdout, &stderr); code != 1 {
				t.Fatalf("exit code: got %d, want 1 (stderr %q)", code, stderr.String())
			}
			if stdout.String() != tt.stdout {
				t.Errorf("stdout: got %q, want %q", stdout.String(), tt.stdout)
			}
			if !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr %q does not mention %q", stderr.String(), tt.wantErr)
			}

			// The bolt file stays locked while a handle is open.
			st, err := store.OpenBolt(db)
			if err != nil {
				t.Fatalf("reopen store: %v", err)
			}
			st.Close()
		})
	}
}

func TestRunNothingToDo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	args := []string{"-config", filepath.Join(t.TempDir(), "absent.yaml")}
	if code := run(args, &stdout, &stderr); code != 2 {
		t.Fatalf("exit code: got %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "nothing to do") {
		t.Errorf("stderr: got %q", stderr.String())
	}
}
