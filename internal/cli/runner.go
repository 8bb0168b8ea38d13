package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dbh/mdcite/internal/logger"
)

// TransformFunc rewrites content and returns the result along with the
// number of unique URLs it cited.
type TransformFunc func(string) (string, int, error)

// Runner executes a tool with the standard interface:
//
//	tool              stdin -> stdout
//	tool in           file -> stdout
//	tool in out       file -> file, with a one-line confirmation
//	tool -w file...   rewrite each file in place
type Runner struct {
	ToolName  string
	Transform TransformFunc

	Stdin  io.Reader
	Stdout io.Writer
	Log    logger.Logger
}

// Run executes a tool against the process's standard streams.
func Run(args []string, writeInPlace bool, toolName string, transform TransformFunc, log logger.Logger) error {
	r := &Runner{
		ToolName:  toolName,
		Transform: transform,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Log:       log,
	}
	return r.Run(args, writeInPlace)
}

// Run dispatches on the argument count.
func (r *Runner) Run(args []string, writeInPlace bool) error {
	if r.Log == nil {
		r.Log = logger.NewNop()
	}
	if r.ToolName != "" {
		r.Log = r.Log.With(logger.String("tool", r.ToolName))
	}

	if writeInPlace {
		if len(args) == 0 {
			return errors.New("-w requires at least one file argument")
		}
		for _, path := range args {
			if err := r.processFile(path); err != nil {
				var nf *InputNotFoundError
				if errors.As(err, &nf) {
					return err
				}
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	}

	switch len(args) {
	case 0:
		return r.toStdout("")
	case 1:
		return r.toStdout(args[0])
	case 2:
		return r.toFile(args[0], args[1])
	default:
		return fmt.Errorf("too many arguments: want at most input and output paths, got %d", len(args))
	}
}

func (r *Runner) toStdout(path string) error {
	data, err := ReadInput(r.Stdin, path)
	if err != nil {
		return err
	}

	result, n, err := r.Transform(data)
	if err != nil {
		return err
	}
	r.Log.Debug("Rewrote document", logger.String("input", displayName(path)), logger.Int("unique_urls", n))

	_, err = io.WriteString(r.Stdout, result)
	return err
}

func (r *Runner) toFile(in, out string) error {
	data, err := ReadInput(r.Stdin, in)
	if err != nil {
		return err
	}

	result, n, err := r.Transform(data)
	if err != nil {
		return err
	}
	if err := WriteOutput(out, result); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	r.Log.Debug("Rewrote document", logger.String("input", in), logger.String("output", out), logger.Int("unique_urls", n))

	_, err = fmt.Fprintf(r.Stdout, "Processed %d unique URLs and saved to %s\n", n, out)
	return err
}

// processFile transforms a file in place, only writing if content changed.
func (r *Runner) processFile(path string) error {
	data, err := ReadInput(r.Stdin, path)
	if err != nil {
		return err
	}

	result, n, err := r.Transform(data)
	if err != nil {
		return err
	}

	// Only write if content changed
	if result == data {
		r.Log.Debug("Unchanged", logger.String("file", path))
		return nil
	}

	r.Log.Debug("Rewrote document", logger.String("file", path), logger.Int("unique_urls", n))
	return WriteOutput(path, result)
}

func displayName(path string) string {
	if path == "" {
		return "<stdin>"
	}
	return path
}
