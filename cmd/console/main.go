// Command console single-steps a glacia program from an interactive prompt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"glacia/pkg/compiler"
	"glacia/pkg/config"
	"glacia/pkg/store"
	"glacia/pkg/utils"
	"glacia/pkg/vm"
)

const historyFile = ".glacia_history"

type session struct {
	m      *vm.Machine
	thread string
	out    io.Writer
	done   bool
}

func main() {
	configPath := flag.String("config", config.DefaultFile, "configuration file")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: console [-config glacia.yaml] <file.gl>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Logger(os.Stderr)

	file, err := utils.ReadSource(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}
	img, err := compiler.Compile(file.Text, file.BaseDir, compiler.WithLogger(logger))
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	m := vm.New(st, vm.WithLogger(logger))
	if err := m.Load(img); err != nil {
		log.Fatalf("load: %v", err)
	}
	ctx := context.Background()
	thread, err := m.Start(ctx)
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	fmt.Printf("Loaded %s: %d functions, %d instructions. Thread %s.\n",
		file.FullPath, len(img.Functions), len(img.Instructions), thread)
	fmt.Println("Enter steps one instruction; type help for commands.")

	s := &session{m: m, thread: thread, out: os.Stdout}
	s.where()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	history := filepath.Join(os.TempDir(), historyFile)
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
	}
	if f, err := os.Open(history); err == nil {
		_, _ = ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			_, _ = ln.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		line, err := ln.Prompt("glacia> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				fmt.Fprintln(os.Stderr, err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line != "" {
			ln.AppendHistory(line)
		}
		if quit := s.command(ctx, line); quit {
			return
		}
	}
}

// command runs one prompt line and reports whether the session should end.
func (s *session) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fields = []string{"step"}
	}
	switch fields[0] {
	case "s", "step":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				fmt.Fprintf(s.out, "bad step count %q\n", fields[1])
				return false
			}
			n = v
		}
		s.run(ctx, n)
	case "c", "continue":
		s.run(ctx, -1)
	case "bt", "frames":
		s.frames(false)
	case "l", "locals":
		s.frames(true)
	case "w", "where":
		s.where()
	case "h", "help":
		fmt.Fprintln(s.out, "step [n]   run n instructions (default 1)")
		fmt.Fprintln(s.out, "continue   run to completion")
		fmt.Fprintln(s.out, "where      show the next instruction")
		fmt.Fprintln(s.out, "frames     list call frames")
		fmt.Fprintln(s.out, "locals     list call frames with their locals")
		fmt.Fprintln(s.out, "quit       leave the console")
	case "q", "quit", "exit":
		return true
	default:
		fmt.Fprintf(s.out, "unknown command %q, try help\n", fields[0])
	}
	return false
}

func (s *session) run(ctx context.Context, n int) {
	if s.done {
		fmt.Fprintln(s.out, "thread finished")
		return
	}
	steps, err := s.m.RunLines(ctx, s.thread, n)
	if err != nil {
		fmt.Fprintf(s.out, "after %d steps: %v\n", steps, err)
		return
	}
	if s.done, err = s.m.Done(s.thread); err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if s.done {
		fmt.Fprintf(s.out, "thread finished after %d steps\n", steps)
		return
	}
	s.where()
}

func (s *session) where() {
	frames, err := s.m.Inspect(s.thread)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	for _, f := range frames {
		if f.Status == store.StatusActive {
			fmt.Fprintf(s.out, "  %s: %s\n", f.Function, s.m.Describe(f.Instruction))
			return
		}
	}
}

func (s *session) frames(withLocals bool) {
	frames, err := s.m.Inspect(s.thread)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	for _, f := range frames {
		fmt.Fprintf(s.out, "#%d %s [%s] %s\n", f.Depth, f.Function, f.Status, s.m.Describe(f.Instruction))
		if !withLocals {
			continue
		}
		for _, v := range f.Locals {
			fmt.Fprintf(s.out, "    %s %s = %s\n", v.Type, v.Name, v.Value)
		}
	}
}
