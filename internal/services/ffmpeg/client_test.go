package ffmpeg_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"repack/internal/services/ffmpeg"
	"repack/internal/testsupport"
)

// encodingExecutor writes a non-empty file at the final argument so the
// output check passes, and records the arguments it saw.
type encodingExecutor struct {
	calls int
	args  [][]string
}

func (e *encodingExecutor) Run(_ context.Context, _ string, args []string) (ffmpeg.ExecResult, error) {
	e.calls++
	e.args = append(e.args, append([]string(nil), args...))
	output := args[len(args)-1]
	if err := os.WriteFile(output, []byte("encoded"), 0o644); err != nil {
		return ffmpeg.ExecResult{}, err
	}
	return ffmpeg.ExecResult{}, nil
}

// partialWritingExecutor writes output bytes and then reports failure, the
// shape of an encode interrupted mid-stream.
type partialWritingExecutor struct {
	calls int
}

func (p *partialWritingExecutor) Run(_ context.Context, _ string, args []string) (ffmpeg.ExecResult, error) {
	p.calls++
	output := args[len(args)-1]
	if err := os.WriteFile(output, []byte("trunc"), 0o644); err != nil {
		return ffmpeg.ExecResult{}, err
	}
	return ffmpeg.ExecResult{ExitCode: 1, Stderr: "Conversion failed!"}, nil
}

// silentExecutor reports success without producing any output file.
type silentExecutor struct {
	calls int
}

func (s *silentExecutor) Run(_ context.Context, _ string, _ []string) (ffmpeg.ExecResult, error) {
	s.calls++
	return ffmpeg.ExecResult{}, nil
}

func TestNewValidatesArguments(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if _, err := ffmpeg.New("", cfg); err == nil {
		t.Fatal("expected error for empty binary")
	}
	if _, err := ffmpeg.New("ffmpeg", nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := ffmpeg.New("ffmpeg", cfg); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestEncodeImageWebPArguments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &encodingExecutor{}
	client, err := ffmpeg.New("ffmpeg", cfg, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "img001.jpg")
	output := filepath.Join(dir, "img001.webp")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	opts := ffmpeg.OptionsFromConfig(cfg)
	if err := client.EncodeImage(context.Background(), input, output, opts); err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}

	if exec.calls != 1 {
		t.Fatalf("calls = %d, want 1", exec.calls)
	}
	want := []string{
		"-i", input,
		"-vf", "scale='min(1080,iw)':'min(1920,ih)':force_original_aspect_ratio=decrease",
		"-q:v", "80",
		"-compression_level", "6",
		"-y", output,
	}
	if !slices.Equal(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("source should survive a successful encode: %v", err)
	}
}

func TestEncodeImageAVIFArguments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Images.Format = "avif"
	exec := &encodingExecutor{}
	client, err := ffmpeg.New("ffmpeg", cfg, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "img001.jpg")
	output := filepath.Join(dir, "img001.avif")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	opts := ffmpeg.OptionsFromConfig(cfg)
	if err := client.EncodeImage(context.Background(), input, output, opts); err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}

	// Quality 80 inverts to crf (100-80)*63/100 = 12.
	want := []string{
		"-i", input,
		"-vf", "scale='min(1080,iw)':'min(1920,ih)':force_original_aspect_ratio=decrease",
		"-c:v", "libaom-av1",
		"-crf", "12",
		"-cpu-used", "8",
		"-row-mt", "1",
		"-y", output,
	}
	if !slices.Equal(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}
}

func TestEncodeImageRemovesPartialOutputOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &partialWritingExecutor{}
	client, err := ffmpeg.New("ffmpeg", cfg, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "img001.jpg")
	output := filepath.Join(dir, "img001.webp")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	encodeErr := client.EncodeImage(context.Background(), input, output, ffmpeg.OptionsFromConfig(cfg))
	if encodeErr == nil {
		t.Fatal("expected error from failed encode")
	}
	if !strings.Contains(encodeErr.Error(), "exited 1") {
		t.Fatalf("error = %v, want exit status mention", encodeErr)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("partial output should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("source should survive a failed encode: %v", err)
	}
}

func TestEncodeImageErrorsWhenOutputMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &silentExecutor{}
	client, err := ffmpeg.New("ffmpeg", cfg, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "img001.jpg")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	encodeErr := client.EncodeImage(context.Background(), input, filepath.Join(dir, "img001.webp"), ffmpeg.OptionsFromConfig(cfg))
	if encodeErr == nil {
		t.Fatal("expected error when no output is produced")
	}
	if !strings.Contains(encodeErr.Error(), "no output produced") {
		t.Fatalf("error = %v, want missing output mention", encodeErr)
	}
}

func TestEncodeImageRejectsUnknownFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &encodingExecutor{}
	client, err := ffmpeg.New("ffmpeg", cfg, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts := ffmpeg.OptionsFromConfig(cfg)
	opts.Format = "jpegxl"
	dir := t.TempDir()
	err = client.EncodeImage(context.Background(), filepath.Join(dir, "a.jpg"), filepath.Join(dir, "a.jxl"), opts)
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if exec.calls != 0 {
		t.Fatalf("executor should not run for invalid options, calls = %d", exec.calls)
	}
}
