package subprocess

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-transcriber/internal/cookies"
	"yt-transcriber/internal/model"
)

func TestRun_CapturesOutput(t *testing.T) {
	inv := NewInvoker(nil)
	res, err := inv.Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "echo out; echo err >&2"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestRun_ArgsAreDiscreteTokens(t *testing.T) {
	// A URL with shell metacharacters must arrive as one literal argument.
	hostile := `https://example.com/watch?v=a&b; echo pwned'"`
	inv := NewInvoker(nil)
	res, err := inv.Run(context.Background(), Command{
		Name:    "printf",
		Args:    []string{"%s", hostile},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, hostile, string(res.Stdout))
}

func TestRun_Timeout(t *testing.T) {
	inv := NewInvoker(nil)
	start := time.Now()
	_, err := inv.Run(context.Background(), Command{
		Name:    "sleep",
		Args:    []string{"10"},
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, model.KindTimeout, model.AsError(err).Kind)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), 8*time.Second)
}

func TestRun_OutputTooLarge(t *testing.T) {
	inv := NewInvoker(nil)
	_, err := inv.Run(context.Background(), Command{
		Name:           "sh",
		Args:           []string{"-c", "yes | head -c 4096"},
		Timeout:        5 * time.Second,
		MaxOutputBytes: 1024,
	})
	require.Error(t, err)
	assert.Equal(t, model.KindOutputTooLarge, model.AsError(err).Kind)
}

func TestRun_FailureIncludesStderrNotCookiePath(t *testing.T) {
	jarPath := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(jarPath, []byte(".y\tTRUE\t/\tTRUE\t0\tA\t1\n"), 0o600))
	inv := NewInvoker(cookies.NewStore(jarPath))

	// sh ignores the injected --cookies args but still fails.
	_, err := inv.Run(context.Background(), Command{
		Name:        "sh",
		Args:        []string{"-c", "echo boom >&2; exit 3"},
		Timeout:     5 * time.Second,
		WithCookies: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NotContains(t, err.Error(), jarPath)
	assert.Contains(t, err.Error(), "[cookies]")
}

func TestFinalArgs_CookieInjection(t *testing.T) {
	jarPath := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(jarPath, []byte(".y\tTRUE\t/\tTRUE\t0\tA\t1\n"), 0o600))
	inv := NewInvoker(cookies.NewStore(jarPath))

	args, redacted := inv.finalArgs(Command{Name: "yt-dlp", Args: []string{"-J", "url"}, WithCookies: true})
	assert.Equal(t, []string{"--cookies", jarPath, "-J", "url"}, args)
	assert.False(t, strings.Contains(redacted, jarPath))
	assert.Contains(t, redacted, "[cookies]")
}

func TestFinalArgs_MissingJarSkipsInjection(t *testing.T) {
	inv := NewInvoker(cookies.NewStore(filepath.Join(t.TempDir(), "absent.txt")))
	args, _ := inv.finalArgs(Command{Name: "yt-dlp", Args: []string{"-J", "url"}, WithCookies: true})
	assert.Equal(t, []string{"-J", "url"}, args)
}

func TestFinalArgs_NotRequested(t *testing.T) {
	jarPath := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(jarPath, []byte(".y\tTRUE\t/\tTRUE\t0\tA\t1\n"), 0o600))
	inv := NewInvoker(cookies.NewStore(jarPath))

	args, _ := inv.finalArgs(Command{Name: "whisper-cli", Args: []string{"-f", "a.wav"}})
	assert.Equal(t, []string{"-f", "a.wav"}, args)
}
