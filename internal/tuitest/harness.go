// Package tuitest drives a built binary through a pseudo terminal and
// records everything it paints larger-scale tests can assert against.
package tuitest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
)

const (
	defaultCols    = 110
	defaultRows    = 34
	defaultTimeout = 8 * time.Second
)

// Step is one scripted interaction: wait, then write the input bytes.
type Step struct {
	Delay time.Duration
	Input []byte
}

// Script configures one harness run.
type Script struct {
	Command []string
	Dir     string
	Env     []string
	Cols    int
	Rows    int
	Steps   []Step
	Timeout time.Duration
	// AllowInterrupt accepts SIGINT-style exits, the normal way a
	// scripted run ends a TUI.
	AllowInterrupt bool
}

// Recording is everything the program wrote to the terminal.
type Recording struct {
	Raw      []byte
	Frames   []Frame
	Duration time.Duration
}

// Contains reports whether any captured frame renders the substring.
func (r *Recording) Contains(substr string) bool {
	if r == nil {
		return false
	}
	for _, frame := range r.Frames {
		if strings.Contains(frame.Plain, substr) {
			return true
		}
	}
	return false
}

// Run spawns the command inside a PTY, replays the script, and captures
// the output stream.
func Run(ctx context.Context, script Script) (*Recording, error) {
	if len(script.Command) == 0 {
		return nil, errors.New("tuitest: command is required")
	}
	cols, rows := script.Cols, script.Rows
	if cols <= 0 {
		cols = defaultCols
	}
	if rows <= 0 {
		rows = defaultRows
	}
	timeout := script.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, script.Command[0], script.Command[1:]...)
	cmd.Dir = script.Dir
	cmd.Env = runEnv(script.Env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("tuitest: start program: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	var output bytes.Buffer
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		responder := newTerminalResponder(ptmx)
		buf := make([]byte, 4096)
		for {
			n, readErr := ptmx.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				responder.Process(chunk)
				_, _ = output.Write(chunk)
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) || errors.Is(readErr, os.ErrClosed) {
					return
				}
				return
			}
		}
	}()

	start := time.Now()
	for _, step := range script.Steps {
		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("tuitest: context cancelled mid-script: %w", ctx.Err())
			case <-time.After(step.Delay):
			}
		}
		if len(step.Input) > 0 {
			if _, err := ptmx.Write(step.Input); err != nil {
				return nil, fmt.Errorf("tuitest: write input: %w", err)
			}
		}
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			var exitErr *exec.ExitError
			interrupted := script.AllowInterrupt && strings.Contains(err.Error(), "signal: interrupt")
			cleanExit := errors.As(err, &exitErr) && exitErr.ExitCode() == 0
			if !interrupted && !cleanExit {
				return nil, fmt.Errorf("tuitest: program exited with error: %w", err)
			}
		}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, fmt.Errorf("tuitest: program did not exit in time: %w", ctx.Err())
	}

	_ = ptmx.Close()
	<-copyDone

	raw := output.Bytes()
	return &Recording{
		Raw:      raw,
		Frames:   parseFrames(raw),
		Duration: time.Since(start),
	}, nil
}

func runEnv(extra []string) []string {
	env := append(os.Environ(), extra...)
	for _, entry := range env {
		if strings.HasPrefix(entry, "TERM=") {
			return env
		}
	}
	return append(env, "TERM=xterm-256color")
}

var (
	// KeyEnter sends a carriage return.
	KeyEnter = []byte{'\r'}
	// KeyEsc leaves transient overlays.
	KeyEsc = []byte{27}
	// KeyCtrlC asks the program to terminate.
	KeyCtrlC = []byte{3}
)
