package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for media operations.
var (
	// ErrNoInputPaths is returned when no input clips are provided.
	ErrNoInputPaths = errors.New("no input paths provided")
	// ErrTranscodeTimeout is returned when ffmpeg exceeds its deadline.
	ErrTranscodeTimeout = errors.New("transcode timed out")
)

// maxCaptureBytes bounds how much ffmpeg stderr is kept for diagnostics.
const maxCaptureBytes = 50 * 1024 * 1024

// FFmpegTranscoder implements Transcoder using the ffmpeg CLI.
type FFmpegTranscoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// streamCopy tries `-c copy` first and falls back to re-encoding.
	streamCopy bool
	// timeout bounds a single ffmpeg invocation. Zero means no deadline.
	timeout time.Duration
}

// TranscoderOption is a function that configures an FFmpegTranscoder.
type TranscoderOption func(*FFmpegTranscoder)

// WithStreamCopy enables the stream-copy fast path. Copy concatenation is
// faster but fails when the clips carry incompatible codecs, in which case
// the transcoder falls back to re-encoding.
func WithStreamCopy(enabled bool) TranscoderOption {
	return func(t *FFmpegTranscoder) {
		t.streamCopy = enabled
	}
}

// WithTimeout bounds each ffmpeg invocation with a cancellable deadline.
func WithTimeout(d time.Duration) TranscoderOption {
	return func(t *FFmpegTranscoder) {
		t.timeout = d
	}
}

// NewFFmpegTranscoder creates a new FFmpegTranscoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegTranscoder(ffmpegPath string, opts ...TranscoderOption) *FFmpegTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	t := &FFmpegTranscoder{ffmpegPath: ffmpegPath}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Concat joins the input clips into a single H.264/AAC mp4.
// Re-encoding is the default so clips with differing codecs concatenate
// cleanly; with stream copy enabled a copy pass runs first and re-encoding
// is the fallback.
func (t *FFmpegTranscoder) Concat(ctx context.Context, inputPaths []string, manifestPath, outputPath string) error {
	if len(inputPaths) == 0 {
		return ErrNoInputPaths
	}

	if err := WriteConcatManifest(manifestPath, inputPaths); err != nil {
		return fmt.Errorf("write concat manifest: %w", err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if t.streamCopy {
		if err := t.concatWithCopy(ctx, manifestPath, outputPath); err == nil {
			return nil
		} else if errors.Is(err, ErrTranscodeTimeout) {
			return err
		}
		// Copy failed, fall through to re-encoding.
	}

	return t.concatWithReencode(ctx, manifestPath, outputPath)
}

// concatWithCopy concatenates clips using stream copy (no re-encoding).
func (t *FFmpegTranscoder) concatWithCopy(ctx context.Context, manifestPath, outputPath string) error {
	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", manifestPath, // Input file list
		"-c", "copy", // Copy streams without re-encoding
		outputPath,
	}
	return t.run(ctx, args)
}

// concatWithReencode concatenates clips by re-encoding with libx264/aac.
func (t *FFmpegTranscoder) concatWithReencode(ctx context.Context, manifestPath, outputPath string) error {
	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", manifestPath, // Input file list
		"-c:v", "libx264", // Video codec
		"-preset", "fast", // Encoding speed preset
		"-crf", "23", // Quality (lower = better, 23 is default)
		"-c:a", "aac", // Audio codec
		"-b:a", "128k", // Audio bitrate
		outputPath,
	}
	return t.run(ctx, args)
}

// WriteConcatManifest writes the file list consumed by ffmpeg's concat
// demuxer: one singly-quoted absolute path per line, embedded quotes escaped.
func WriteConcatManifest(manifestPath string, inputPaths []string) error {
	var b strings.Builder
	for _, p := range inputPaths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("get absolute path for %s: %w", p, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		fmt.Fprintf(&b, "file '%s'\n", escapedPath)
	}
	if err := os.WriteFile(manifestPath, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// run executes ffmpeg with the given arguments and returns an error
// carrying the captured stderr if the command fails.
func (t *FFmpegTranscoder) run(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &boundedWriter{w: &stderr, limit: maxCaptureBytes}

	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after deadline: %v", ErrTranscodeTimeout, ctx.Err())
		}
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// boundedWriter discards everything past its limit.
type boundedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (b *boundedWriter) Write(p []byte) (int, error) {
	if remaining := b.limit - b.w.Len(); remaining > 0 {
		if len(p) > remaining {
			b.w.Write(p[:remaining])
		} else {
			b.w.Write(p)
		}
	}
	return len(p), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
