// Package runner is the program entry contract: compile a source, load it
// and run, step or merely load it.
package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"glacia/pkg/compiler"
	"glacia/pkg/dbil"
	"glacia/pkg/store"
	"glacia/pkg/utils"
	"glacia/pkg/vm"
)

var (
	ErrSourceConflict = errors.New("runner: give only one of a source path, source text, an image or a thread")
	ErrNoSource       = errors.New("runner: no source, image or thread to run")
)

// Execution lengths with special meaning.
const (
	RunToCompletion = -1
	LoadOnly        = 0
)

type Options struct {
	Path      string
	Source    string
	Image     *dbil.Image
	ExecLines int
	Verbose   bool
	Capture   bool
	Store     store.Store
	Logger    *slog.Logger
	Output    io.Writer
	Thread    string
}

type Option func(*Options)

func WithPath(path string) Option { return func(o *Options) { o.Path = path } }
func WithSource(src string) Option { return func(o *Options) { o.Source = src } }
func WithImage(img *dbil.Image) Option { return func(o *Options) { o.Image = img } }

// WithExecLines sets how far to run: RunToCompletion, LoadOnly, or a
// number of instructions to single-step.
func WithExecLines(n int) Option { return func(o *Options) { o.ExecLines = n } }

// WithVerbose turns on debug logging for every compile stage and step.
func WithVerbose(v bool) Option { return func(o *Options) { o.Verbose = v } }

// WithCapture returns printed lines in Result.Output instead of writing
// them.
func WithCapture() Option { return func(o *Options) { o.Capture = true } }

func WithStore(st store.Store) Option { return func(o *Options) { o.Store = st } }
func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }
func WithOutput(w io.Writer) Option { return func(o *Options) { o.Output = w } }

// WithThread continues an existing thread with the program already in the
// store. It cannot be combined with a source or an image.
func WithThread(id string) Option { return func(o *Options) { o.Thread = id } }

// Result describes what a Run did.
type Result struct {
	ThreadID string
	Output   []string
	Steps    int
	Done     bool
}

func Run(ctx context.Context, opts ...Option) (*Result, error) {
	o := Options{ExecLines: RunToCompletion, Output: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if sources(o) > 1 {
		return nil, ErrSourceConflict
	}
	log := o.Logger
	if log == nil {
		level := slog.LevelInfo
		if o.Verbose {
			level = slog.LevelDebug
		}
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	if o.Store == nil {
		o.Store = store.NewMemory()
	}

	img := o.Image
	if o.Path != "" || o.Source != "" {
		var err error
		if img, err = compileSource(o, log); err != nil {
			return nil, err
		}
	}
	if img == nil && o.Thread == "" {
		return nil, ErrNoSource
	}

	mopts := []vm.Option{vm.WithLogger(log), vm.WithOutput(o.Output)}
	if o.Capture {
		mopts = append(mopts, vm.WithCapture())
	}
	m := vm.New(o.Store, mopts...)

	res := &Result{ThreadID: o.Thread}
	if img != nil {
		if err := m.Load(img); err != nil {
			return nil, err
		}
		if o.ExecLines == LoadOnly {
			log.Debug("program loaded, not started")
			return res, nil
		}
		id, err := m.Start(ctx)
		if err != nil {
			return nil, err
		}
		res.ThreadID = id
	}

	steps, err := m.RunLines(ctx, res.ThreadID, o.ExecLines)
	res.Steps = steps
	res.Output = m.Output()
	if err != nil {
		return res, err
	}
	if res.Done, err = m.Done(res.ThreadID); err != nil {
		return res, err
	}
	return res, nil
}

// sources counts the mutually exclusive inputs that were set.
func sources(o Options) int {
	n := 0
	for _, set := range []bool{o.Path != "", o.Source != "", o.Image != nil, o.Thread != ""} {
		if set {
			n++
		}
	}
	return n
}

func compileSource(o Options, log *slog.Logger) (*dbil.Image, error) {
	src, baseDir := o.Source, ""
	if o.Path != "" {
		file, err := utils.ReadSource(o.Path)
		if err != nil {
			return nil, err
		}
		src, baseDir = file.Text, file.BaseDir
	}
	return compiler.Compile(src, baseDir, compiler.WithLogger(log))
}
