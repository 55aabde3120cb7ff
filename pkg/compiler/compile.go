package compiler

import (
	"log/slog"

	"glacia/pkg/dbil"
)

// Options control a compilation.
type Options struct {
	Logger *slog.Logger
}

// Option configures Compile.
type Option func(*Options)

// WithLogger sets the logger that receives per-stage debug records.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Lower runs the four lowering passes in their required order.
func Lower(prog *Program) error {
	st := &State{}
	Restructure(prog, st)
	Reduce(prog, st)
	if err := Parameterize(prog); err != nil {
		return err
	}
	return Sweeten(prog)
}

// Front runs everything up to and including lowering, returning the AST.
func Front(src, baseDir string, opts ...Option) (*Program, error) {
	o := Options{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.Logger

	src, err := Preprocess(src, baseDir)
	if err != nil {
		return nil, err
	}
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	log.Debug("lexed", "tokens", len(tokens))

	root, err := Parse(tokens)
	if err != nil {
		return nil, err
	}
	log.Debug("parsed", "statements", len(root.Children))

	prog, err := Analyze(root)
	if err != nil {
		return nil, err
	}
	log.Debug("analyzed", "functions", len(prog.Functions))

	if err := Lower(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// Compile turns source text into a validated program image. baseDir
// resolves #include directives.
func Compile(src, baseDir string, opts ...Option) (*dbil.Image, error) {
	o := Options{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	prog, err := Front(src, baseDir, opts...)
	if err != nil {
		return nil, err
	}
	img, err := Generate(prog)
	if err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	o.Logger.Debug("generated", "functions", len(img.Functions), "instructions", len(img.Instructions))
	return img, nil
}
