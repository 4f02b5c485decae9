// Package subprocess runs external tools as child processes with a hard
// wall-clock timeout, bounded output capture, and automatic cookie-jar
// argument injection. Arguments are always passed as discrete argv tokens;
// nothing is ever joined into a shell string.
package subprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"yt-transcriber/internal/cookies"
	"yt-transcriber/internal/model"
)

const (
	DefaultMaxOutputBytes = 8 << 20 // 8 MiB per stream
	cookieRedaction       = "[cookies]"
)

type Command struct {
	Name           string
	Args           []string
	Dir            string
	Timeout        time.Duration
	MaxOutputBytes int
	// WithCookies prepends "--cookies <jar>" when the jar snapshot is not
	// missing. Callers never see or pass the jar path themselves.
	WithCookies bool
}

type Result struct {
	Stdout []byte
	Stderr []byte
}

type Invoker struct {
	jar *cookies.Store
}

func NewInvoker(jar *cookies.Store) *Invoker {
	return &Invoker{jar: jar}
}

// Run executes the command and waits for it to exit. On timeout the child is
// killed and a KindTimeout error is returned; output past MaxOutputBytes is
// a fatal KindOutputTooLarge.
func (inv *Invoker) Run(ctx context.Context, c Command) (Result, error) {
	args, redacted := inv.finalArgs(c)

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	maxOut := c.MaxOutputBytes
	if maxOut <= 0 {
		maxOut = DefaultMaxOutputBytes
	}

	cmd := exec.CommandContext(runCtx, c.Name, args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = 5 * time.Second

	stdout := &cappedBuffer{max: maxOut}
	stderr := &cappedBuffer{max: maxOut}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if stdout.overflowed || stderr.overflowed {
		return res, model.NewError(model.KindOutputTooLarge,
			"%s produced more than %d bytes of output", c.Name, maxOut)
	}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return res, model.NewError(model.KindTimeout,
				"%s timed out after %s", c.Name, c.Timeout)
		}
		return res, fmt.Errorf("%s failed: %w: %s", redacted, err, trimOutput(res.Stderr))
	}
	return res, nil
}

// finalArgs injects the cookie argument and returns a loggable command line
// with the jar path redacted.
func (inv *Invoker) finalArgs(c Command) (args []string, redacted string) {
	args = c.Args
	display := c.Args
	if c.WithCookies && inv.jar != nil {
		if snap := inv.jar.Snapshot(); snap.Status != cookies.StatusMissing {
			args = append([]string{"--cookies", inv.jar.Path()}, c.Args...)
			display = append([]string{"--cookies", cookieRedaction}, c.Args...)
		}
	}
	return args, c.Name + " " + strings.Join(display, " ")
}

// LookPath reports whether a tool is installed.
func LookPath(name string) (string, bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

func trimOutput(b []byte) string {
	const keep = 2048
	s := strings.TrimSpace(string(b))
	if len(s) > keep {
		s = s[:keep]
	}
	return s
}

// cappedBuffer keeps writing up to max bytes and records overflow instead of
// growing without bound.
type cappedBuffer struct {
	buf        bytes.Buffer
	max        int
	overflowed bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remain := b.max - b.buf.Len()
	if remain <= 0 {
		b.overflowed = true
		return len(p), nil
	}
	if len(p) > remain {
		b.buf.Write(p[:remain])
		b.overflowed = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) Bytes() []byte { return b.buf.Bytes() }

// IsTimeout reports whether err is the invoker's timeout error.
func IsTimeout(err error) bool {
	e := model.AsError(err)
	return e != nil && e.Kind == model.KindTimeout
}
