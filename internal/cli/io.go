// Package cli provides the input/output plumbing for the mdcite binary.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// ErrInputNotFound is matched by errors.Is for a missing input file.
var ErrInputNotFound = errors.New("input file not found")

// InputNotFoundError reports a missing input path in the form users see.
type InputNotFoundError struct {
	Path string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("Error: Input file '%s' not found.", e.Path)
}

func (e *InputNotFoundError) Is(target error) bool {
	return target == ErrInputNotFound
}

// ReadInput returns the contents of path, or of stdin when path is empty.
func ReadInput(stdin io.Reader, path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &InputNotFoundError{Path: path}
		}
		return "", err
	}
	return string(data), nil
}

// WriteOutput writes content to path, replacing any existing file.
func WriteOutput(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
