//go:build !js

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"glacia/pkg/config"
	"glacia/pkg/dbil"
	"glacia/pkg/runner"
	"glacia/pkg/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main with its exit code returned, so deferred closes still happen
// on the error paths.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("glacia", flag.ContinueOnError)
	fs.SetOutput(stderr)
	filePath := fs.String("f", "", "source file to compile and run")
	source := fs.String("e", "", "source text to compile and run")
	imagePath := fs.String("image", "", "run a program image written by glaciac -o")
	lines := fs.Int("r", -1, "instructions to execute: -1 runs to completion, 0 only loads")
	verbose := fs.Bool("v", false, "log every compile stage and executed instruction")
	configPath := fs.String("config", config.DefaultFile, "configuration file")
	thread := fs.String("thread", "", "continue an existing thread in a persistent store")
	backend := fs.String("store", "", "store backend: memory, snapshot or bolt")
	storePath := fs.String("store-path", "", "file used by the snapshot and bolt backends")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "r":
			cfg.Run.Lines = *lines
		case "v":
			cfg.Run.Verbose = *verbose
		case "store":
			cfg.Store.Backend = *backend
		case "store-path":
			cfg.Store.Path = *storePath
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	if *filePath == "" && *source == "" && *imagePath == "" && *thread == "" {
		fmt.Fprintln(stderr, "nothing to do: provide -f <file>, -e <source>, -image <file> or -thread <id>")
		fs.Usage()
		return 2
	}

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(stderr, "store: %v\n", err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			fmt.Fprintf(stderr, "store: %v\n", err)
		}
	}()

	opts := []runner.Option{
		runner.WithPath(*filePath),
		runner.WithSource(*source),
		runner.WithExecLines(cfg.Run.Lines),
		runner.WithVerbose(cfg.Run.Verbose),
		runner.WithStore(st),
		runner.WithLogger(cfg.Logger(stderr)),
		runner.WithOutput(stdout),
		runner.WithThread(*thread),
	}
	if *imagePath != "" {
		img, err := readImage(*imagePath)
		if err != nil {
			fmt.Fprintf(stderr, "failed to read image %q: %v\n", *imagePath, err)
			return 1
		}
		opts = append(opts, runner.WithImage(img))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := runner.Run(ctx, opts...)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if res.ThreadID != "" && !res.Done {
		fmt.Fprintf(stderr, "thread %s paused after %d steps\n", res.ThreadID, res.Steps)
	}
	return 0
}

func readImage(path string) (*dbil.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dbil.Read(f)
}
