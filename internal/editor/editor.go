// Package editor turns the configured editor string into a process.
package editor

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/anmitsu/go-shlex"
)

var ErrNoEditor = errors.New("no editor configured")

// Argv splits a command line such as `code --wait` and appends the file.
func Argv(command, file string) ([]string, error) {
	parts, err := shlex.Split(command, true)
	if err != nil {
		return nil, fmt.Errorf("parse editor %q: %w", command, err)
	}
	if len(parts) == 0 {
		return nil, ErrNoEditor
	}
	return append(parts, file), nil
}

// Command builds the editor process for file, running in the file's
// directory. The caller wires stdio; the UI hands the terminal over.
func Command(command, file string) (*exec.Cmd, error) {
	argv, err := Argv(command, file)
	if err != nil {
		return nil, err
	}
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("editor %q: %w", argv[0], err)
	}
	cmd := exec.Command(bin, argv[1:]...)
	cmd.Dir = filepath.Dir(file)
	return cmd, nil
}
