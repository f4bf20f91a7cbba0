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
	"testing"
	"time"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestVideo creates a simple test video using ffmpeg.
func createTestVideo(t *testing.T, path string, duration float64, color string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=64x64:d=%.1f", color, duration),
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func TestWriteConcatManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "videos.txt")

	t.Run("writes one quoted line per clip in order", func(t *testing.T) {
		err := WriteConcatManifest(manifest, []string{
			filepath.Join(dir, "clip-0.mp4"),
			filepath.Join(dir, "clip-1.mp4"),
		})
		if err != nil {
			t.Fatalf("WriteConcatManifest() error = %v", err)
		}

		content, err := os.ReadFile(manifest)
		if err != nil {
			t.Fatalf("read manifest: %v", err)
		}

		lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(content))
		}
		want0 := fmt.Sprintf("file '%s'", filepath.Join(dir, "clip-0.mp4"))
		if lines[0] != want0 {
			t.Errorf("line 0 = %q, want %q", lines[0], want0)
		}
		want1 := fmt.Sprintf("file '%s'", filepath.Join(dir, "clip-1.mp4"))
		if lines[1] != want1 {
			t.Errorf("line 1 = %q, want %q", lines[1], want1)
		}
	})

	t.Run("escapes single quotes", func(t *testing.T) {
		quoted := filepath.Join(dir, "it's.mp4")
		if err := WriteConcatManifest(manifest, []string{quoted}); err != nil {
			t.Fatalf("WriteConcatManifest() error = %v", err)
		}

		content, err := os.ReadFile(manifest)
		if err != nil {
			t.Fatalf("read manifest: %v", err)
		}
		if !strings.Contains(string(content), `it'\''s.mp4`) {
			t.Errorf("manifest should escape single quotes, got %q", string(content))
		}
	})
}

func TestConcat_NoInputs(t *testing.T) {
	tr := NewFFmpegTranscoder("")
	err := tr.Concat(context.Background(), nil, "list.txt", "out.mp4")
	if !errors.Is(err, ErrNoInputPaths) {
		t.Errorf("expected ErrNoInputPaths, got %v", err)
	}
}

func TestFFmpegError_IncludesStderr(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-f", "concat"},
		Stderr: "Unknown decoder 'libx264'",
		Err:    errors.New("exit status 1"),
	}

	msg := err.Error()
	if !strings.Contains(msg, "Unknown decoder") {
		t.Errorf("error message should carry stderr, got %q", msg)
	}
	if !strings.Contains(msg, "exit status 1") {
		t.Errorf("error message should carry the exit error, got %q", msg)
	}
}

func TestConcat_FailsWithDiagnostics(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	bogus := filepath.Join(dir, "clip-0.mp4")
	if err := os.WriteFile(bogus, []byte("not a video"), 0600); err != nil {
		t.Fatal(err)
	}

	tr := NewFFmpegTranscoder("")
	err := tr.Concat(context.Background(), []string{bogus},
		filepath.Join(dir, "videos.txt"), filepath.Join(dir, "output.mp4"))
	if err == nil {
		t.Fatal("expected error for invalid input")
	}

	var ffErr *FFmpegError
	if !errors.As(err, &ffErr) {
		t.Fatalf("expected *FFmpegError, got %T: %v", err, err)
	}
	if ffErr.Stderr == "" {
		t.Error("expected captured stderr diagnostics")
	}
}

func TestConcat_JoinsTwoClips(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	clip0 := filepath.Join(dir, "clip-0.mp4")
	clip1 := filepath.Join(dir, "clip-1.mp4")
	createTestVideo(t, clip0, 1.0, "red")
	createTestVideo(t, clip1, 1.0, "blue")

	output := filepath.Join(dir, "output.mp4")
	tr := NewFFmpegTranscoder("", WithTimeout(2*time.Minute))
	if err := tr.Concat(context.Background(), []string{clip0, clip1},
		filepath.Join(dir, "videos.txt"), output); err != nil {
		t.Fatalf("Concat() error = %v", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("output not created: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
}

func TestConcat_StreamCopyFallsBackToReencode(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	clip0 := filepath.Join(dir, "clip-0.mp4")
	clip1 := filepath.Join(dir, "clip-1.mp4")
	createTestVideo(t, clip0, 1.0, "red")
	createTestVideo(t, clip1, 1.0, "green")

	output := filepath.Join(dir, "output.mp4")
	tr := NewFFmpegTranscoder("", WithStreamCopy(true), WithTimeout(2*time.Minute))
	if err := tr.Concat(context.Background(), []string{clip0, clip1},
		filepath.Join(dir, "videos.txt"), output); err != nil {
		t.Fatalf("Concat() error = %v", err)
	}

	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output not created: %v", err)
	}
}

func TestConcat_Timeout(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	clip := filepath.Join(dir, "clip-0.mp4")
	createTestVideo(t, clip, 5.0, "red")

	tr := NewFFmpegTranscoder("", WithTimeout(1*time.Millisecond))
	err := tr.Concat(context.Background(), []string{clip},
		filepath.Join(dir, "videos.txt"), filepath.Join(dir, "output.mp4"))
	if !errors.Is(err, ErrTranscodeTimeout) {
		t.Errorf("expected ErrTranscodeTimeout, got %v", err)
	}
}

func TestBoundedWriter_TruncatesAtLimit(t *testing.T) {
	var buf bytes.Buffer
	w := &boundedWriter{w: &buf, limit: 4}

	n, err := w.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = (%d, %v), want (6, nil)", n, err)
	}
	if buf.String() != "abcd" {
		t.Errorf("captured %q, want %q", buf.String(), "abcd")
	}

	// Further writes past the limit are discarded but reported written.
	n, err = w.Write([]byte("gh"))
	if err != nil || n != 2 {
		t.Fatalf("Write() = (%d, %v), want (2, nil)", n, err)
	}
	if buf.String() != "abcd" {
		t.Errorf("captured %q, want %q", buf.String(), "abcd")
	}
}
