package pipeline_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"repack/internal/config"
	"repack/internal/imaging"
	"repack/internal/logging"
	"repack/internal/pipeline"
	"repack/internal/queue"
	"repack/internal/services"
	"repack/internal/services/contentapi"
	"repack/internal/services/sevenzip"
	"repack/internal/testsupport"
)

// stubArchiver fakes extraction by writing a canned tree into the
// destination and records what the packaging step was asked to archive.
type stubArchiver struct {
	t          *testing.T
	tree       []string
	extractErr error
	createErr  error

	extractCalled bool
	packedFiles   []string
	outputPath    string
}

func (s *stubArchiver) Extract(_ context.Context, _, destDir string, _ []string, _ string) error {
	s.extractCalled = true
	if s.extractErr != nil {
		return s.extractErr
	}
	testsupport.WriteTree(s.t, destDir, s.tree...)
	return nil
}

func (s *stubArchiver) Create(_ context.Context, sourceDir, outputPath, _ string, _ sevenzip.Recipe) error {
	if s.createErr != nil {
		return s.createErr
	}
	var files []string
	err := filepath.WalkDir(sourceDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)
	s.packedFiles = files
	s.outputPath = outputPath
	return os.WriteFile(outputPath, []byte("packed"), 0o644)
}

type stubPublisher struct {
	loginErr  error
	uploadErr error
	submitErr error
	urls      []string

	loginCalled  bool
	uploadedDir  string
	submitted    bool
	articleTitle string
	imageURLs    []string
	cover        string
}

func (s *stubPublisher) EnsureLogin(context.Context) error {
	s.loginCalled = true
	return s.loginErr
}

func (s *stubPublisher) FetchCategories(context.Context) ([]contentapi.Category, error) {
	return []contentapi.Category{{ID: 2, Name: "cosplay"}}, nil
}

func (s *stubPublisher) UploadImages(_ context.Context, dir string) ([]string, error) {
	s.uploadedDir = dir
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return s.urls, nil
}

func (s *stubPublisher) SubmitArticle(_ context.Context, title string, imageURLs []string, cover string) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.submitted = true
	s.articleTitle = title
	s.imageURLs = imageURLs
	s.cover = cover
	return "article-77", nil
}

type stubNotifier struct {
	completed []string
	failed    []string
	drained   int
}

func (s *stubNotifier) NotifyJobComplete(_ context.Context, title, _ string) error {
	s.completed = append(s.completed, title)
	return nil
}

func (s *stubNotifier) NotifyJobFailed(_ context.Context, title string, _ error) error {
	s.failed = append(s.failed, title)
	return nil
}

func (s *stubNotifier) NotifyWatchDrained(_ context.Context, _, _ int, _ time.Duration) error {
	s.drained++
	return nil
}

func (s *stubNotifier) TestNotification(context.Context) error { return nil }

// webpStubCompressor simulates a re-encoding pass by renaming .jpg files
// to .webp in place.
type webpStubCompressor struct{}

func (webpStubCompressor) Compress(_ context.Context, dir string) (imaging.Result, error) {
	var result imaging.Result
	var sources []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(path), ".jpg") {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	for _, path := range sources {
		if err := os.Rename(path, strings.TrimSuffix(path, filepath.Ext(path))+".webp"); err != nil {
			return result, err
		}
		result.Compressed++
	}
	return result, nil
}

func testConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Images.Enabled = false
	cfg.Rename.ImagePrefix = "img_"
	cfg.Rename.VideoPrefix = "vid_"
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config, opts ...pipeline.Option) (*pipeline.Pipeline, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	p, err := pipeline.New(cfg, store, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	return p, store
}

func soleJob(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()
	jobs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("job count = %d, want 1", len(jobs))
	}
	return jobs[0]
}

func TestProcessPathArchiveFlow(t *testing.T) {
	cfg := testConfig(t, testsupport.WithSkipLogin())
	src := filepath.Join(testsupport.BaseDir(cfg), "drop", "Sunset Gallery.7z")
	testsupport.WriteFile(t, src, 64)

	archiver := &stubArchiver{t: t, tree: []string{
		"Sunset Gallery/clip1.mp4",
		"Sunset Gallery/photo2.jpg",
		"Sunset Gallery/photo10.jpg",
		"Sunset Gallery/readme.txt",
	}}
	notifier := &stubNotifier{}
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver), pipeline.WithNotifier(notifier))

	if err := p.ProcessPath(context.Background(), src); err != nil {
		t.Fatalf("ProcessPath: %v", err)
	}

	wantTitle := "Sunset Gallery [2P+1V - 0MB]"
	wantFiles := []string{"img_001.jpg", "img_002.jpg", "vid_001.mp4"}
	if !reflect.DeepEqual(archiver.packedFiles, wantFiles) {
		t.Fatalf("packed files = %v, want %v", archiver.packedFiles, wantFiles)
	}

	wantArchive := filepath.Join(cfg.Paths.OutputDir, wantTitle+".7z")
	if archiver.outputPath != wantArchive {
		t.Fatalf("output path = %q, want %q", archiver.outputPath, wantArchive)
	}
	if _, err := os.Stat(wantArchive); err != nil {
		t.Fatalf("stat output archive: %v", err)
	}

	job := soleJob(t, store)
	if job.Status != queue.StatusCompleted {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusCompleted)
	}
	if job.Kind != queue.KindArchive {
		t.Fatalf("kind = %q, want %q", job.Kind, queue.KindArchive)
	}
	if job.Title != wantTitle {
		t.Fatalf("title = %q, want %q", job.Title, wantTitle)
	}
	if job.ArchivePath != wantArchive {
		t.Fatalf("archive path = %q, want %q", job.ArchivePath, wantArchive)
	}

	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source archive should be kept: %v", err)
	}
	entries, err := os.ReadDir(cfg.Paths.TempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging left %d entries behind", len(entries))
	}

	if !reflect.DeepEqual(notifier.completed, []string{wantTitle}) {
		t.Fatalf("completion notifications = %v, want [%q]", notifier.completed, wantTitle)
	}
	if len(notifier.failed) != 0 {
		t.Fatalf("unexpected failure notifications: %v", notifier.failed)
	}
}

func TestProcessPathFolderFlow(t *testing.T) {
	cfg := testConfig(t, testsupport.WithSkipLogin())
	src := filepath.Join(testsupport.BaseDir(cfg), "incoming", "Beach Set")
	testsupport.WriteTree(t, src,
		"a2.jpg",
		"a10.jpg",
		"notes.txt",
		"sub/b1.png",
	)

	archiver := &stubArchiver{t: t}
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver))

	if err := p.ProcessPath(context.Background(), src); err != nil {
		t.Fatalf("ProcessPath: %v", err)
	}

	wantFiles := []string{"img_001.jpg", "img_002.jpg", "sub/img_003.png"}
	if !reflect.DeepEqual(archiver.packedFiles, wantFiles) {
		t.Fatalf("packed files = %v, want %v", archiver.packedFiles, wantFiles)
	}
	if archiver.extractCalled {
		t.Fatal("folder flow should not extract")
	}

	job := soleJob(t, store)
	if job.Kind != queue.KindFolder {
		t.Fatalf("kind = %q, want %q", job.Kind, queue.KindFolder)
	}
	if job.Status != queue.StatusCompleted {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusCompleted)
	}
	if want := "Beach Set [3P - 0MB]"; job.Title != want {
		t.Fatalf("title = %q, want %q", job.Title, want)
	}

	// The source folder is never modified: junk removal and renaming
	// happen on the staged copy only.
	for _, name := range []string{"a2.jpg", "a10.jpg", "notes.txt", "sub/b1.png"} {
		if _, err := os.Stat(filepath.Join(src, filepath.FromSlash(name))); err != nil {
			t.Fatalf("source file %s touched: %v", name, err)
		}
	}
}

func TestProcessPathRejectsMissingSource(t *testing.T) {
	cfg := testConfig(t, testsupport.WithSkipLogin())
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(&stubArchiver{t: t}))

	err := p.ProcessPath(context.Background(), filepath.Join(testsupport.BaseDir(cfg), "nope.7z"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	jobs, listErr := store.List(context.Background())
	if listErr != nil {
		t.Fatalf("list jobs: %v", listErr)
	}
	if len(jobs) != 0 {
		t.Fatalf("missing source recorded %d jobs", len(jobs))
	}
}

func TestRunEmptyArchiveLandsInReview(t *testing.T) {
	cfg := testConfig(t, testsupport.WithSkipLogin())
	srcDir := filepath.Join(testsupport.BaseDir(cfg), "drop")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("mkdir drop dir: %v", err)
	}
	src := filepath.Join(srcDir, "Empty Drop.7z")
	if err := os.WriteFile(src, nil, 0o644); err != nil {
		t.Fatalf("write empty archive: %v", err)
	}

	archiver := &stubArchiver{t: t}
	notifier := &stubNotifier{}
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver), pipeline.WithNotifier(notifier))

	err := p.ProcessPath(context.Background(), src)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if archiver.extractCalled {
		t.Fatal("empty archive should not reach extraction")
	}

	job := soleJob(t, store)
	if job.Status != queue.StatusReview {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusReview)
	}
	if !strings.Contains(job.ErrorMessage, "is empty") {
		t.Fatalf("error message = %q, want mention of empty archive", job.ErrorMessage)
	}
	if !reflect.DeepEqual(notifier.failed, []string{"Empty Drop.7z"}) {
		t.Fatalf("failure notifications = %v, want [Empty Drop.7z]", notifier.failed)
	}
}

func TestRunEmptyExtractionLandsInReview(t *testing.T) {
	cfg := testConfig(t, testsupport.WithSkipLogin())
	src := filepath.Join(testsupport.BaseDir(cfg), "drop", "Hollow.7z")
	testsupport.WriteFile(t, src, 32)

	// No tree entries: extraction succeeds but produces nothing.
	archiver := &stubArchiver{t: t}
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver))

	err := p.ProcessPath(context.Background(), src)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if job := soleJob(t, store); job.Status != queue.StatusReview {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusReview)
	}
}

func TestRunUploadsAndPublishes(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "drop", "Sunset Gallery.7z")
	testsupport.WriteFile(t, src, 64)

	urls := []string{
		"https://cdn.example/img_001.webp",
		"https://cdn.example/img_002.webp",
	}
	archiver := &stubArchiver{t: t, tree: []string{
		"Sunset Gallery/photo2.jpg",
		"Sunset Gallery/photo10.jpg",
	}}
	pub := &stubPublisher{urls: urls}
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver), pipeline.WithPublisher(pub))

	if err := p.ProcessPath(context.Background(), src); err != nil {
		t.Fatalf("ProcessPath: %v", err)
	}

	if !pub.loginCalled {
		t.Fatal("login was not attempted")
	}
	if !pub.submitted {
		t.Fatal("article was not submitted")
	}
	wantTitle := "Sunset Gallery [2P - 0MB]"
	if pub.articleTitle != wantTitle {
		t.Fatalf("article title = %q, want %q", pub.articleTitle, wantTitle)
	}
	if !reflect.DeepEqual(pub.imageURLs, urls) {
		t.Fatalf("article urls = %v, want %v", pub.imageURLs, urls)
	}
	if pub.cover != urls[0] {
		t.Fatalf("cover = %q, want first uploaded url %q", pub.cover, urls[0])
	}

	job := soleJob(t, store)
	if job.Status != queue.StatusCompleted {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusCompleted)
	}
	if job.UploadedCount != len(urls) {
		t.Fatalf("uploaded count = %d, want %d", job.UploadedCount, len(urls))
	}
}

func TestRunFailsJobWhenUploadFails(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "drop", "Sunset Gallery.7z")
	testsupport.WriteFile(t, src, 64)

	archiver := &stubArchiver{t: t, tree: []string{
		"Sunset Gallery/photo2.jpg",
		"Sunset Gallery/photo10.jpg",
	}}
	pub := &stubPublisher{
		uploadErr: services.Wrap(services.ErrTransient, "upload", "batch", "upload image batch", errors.New("boom")),
	}
	notifier := &stubNotifier{}
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver), pipeline.WithPublisher(pub), pipeline.WithNotifier(notifier))

	err := p.ProcessPath(context.Background(), src)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}

	job := soleJob(t, store)
	if job.Status != queue.StatusFailed {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusFailed)
	}

	// Packaging happens before upload, so the archive survives the failure.
	if _, statErr := os.Stat(archiver.outputPath); statErr != nil {
		t.Fatalf("stat output archive: %v", statErr)
	}
	wantTitle := "Sunset Gallery [2P - 0MB]"
	if !reflect.DeepEqual(notifier.failed, []string{wantTitle}) {
		t.Fatalf("failure notifications = %v, want [%q]", notifier.failed, wantTitle)
	}
}

func TestRunSkipsPublishWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.EnablePublish = false
	src := filepath.Join(testsupport.BaseDir(cfg), "drop", "Sunset Gallery.7z")
	testsupport.WriteFile(t, src, 64)

	archiver := &stubArchiver{t: t, tree: []string{
		"Sunset Gallery/photo2.jpg",
		"Sunset Gallery/photo10.jpg",
	}}
	pub := &stubPublisher{urls: []string{
		"https://cdn.example/img_001.webp",
		"https://cdn.example/img_002.webp",
	}}
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver), pipeline.WithPublisher(pub))

	if err := p.ProcessPath(context.Background(), src); err != nil {
		t.Fatalf("ProcessPath: %v", err)
	}
	if pub.submitted {
		t.Fatal("article submitted despite publish being disabled")
	}

	job := soleJob(t, store)
	if job.Status != queue.StatusCompleted {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusCompleted)
	}
	if job.UploadedCount != 2 {
		t.Fatalf("uploaded count = %d, want 2", job.UploadedCount)
	}
}

func TestRunLoginFailureAbortsBeforeExtraction(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "drop", "Sunset Gallery.7z")
	testsupport.WriteFile(t, src, 64)

	archiver := &stubArchiver{t: t, tree: []string{"Sunset Gallery/photo2.jpg"}}
	pub := &stubPublisher{
		loginErr: services.Wrap(services.ErrAuth, "login", "authenticate", "login rejected", nil),
	}
	p, store := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver), pipeline.WithPublisher(pub))

	err := p.ProcessPath(context.Background(), src)
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("error = %v, want ErrAuth", err)
	}
	if archiver.extractCalled {
		t.Fatal("extraction ran despite failed login")
	}
	if job := soleJob(t, store); job.Status != queue.StatusFailed {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusFailed)
	}
}

func TestRunDeletesSourceWhenConfigured(t *testing.T) {
	cfg := testConfig(t, testsupport.WithSkipLogin())
	cfg.Cleanup.DeleteSourceFiles = true
	src := filepath.Join(testsupport.BaseDir(cfg), "drop", "Sunset Gallery.7z")
	testsupport.WriteFile(t, src, 64)

	archiver := &stubArchiver{t: t, tree: []string{"Sunset Gallery/photo2.jpg"}}
	p, _ := newTestPipeline(t, cfg, pipeline.WithArchiver(archiver))

	if err := p.ProcessPath(context.Background(), src); err != nil {
		t.Fatalf("ProcessPath: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("source archive still present: %v", err)
	}
}

func TestRunKeepsCompressedImages(t *testing.T) {
	cfg := testConfig(t, testsupport.WithSkipLogin())
	cfg.Images.Enabled = true
	cfg.Images.KeepCompressed = true
	src := filepath.Join(testsupport.BaseDir(cfg), "incoming", "Beach Set")
	testsupport.WriteTree(t, src, "a2.jpg", "a10.jpg")

	archiver := &stubArchiver{t: t}
	p, store := newTestPipeline(t, cfg,
		pipeline.WithArchiver(archiver),
		pipeline.WithImageCompressor(webpStubCompressor{}),
	)

	if err := p.ProcessPath(context.Background(), src); err != nil {
		t.Fatalf("ProcessPath: %v", err)
	}

	// Packaging runs before the re-encoding pass, so the archive holds
	// the originals.
	wantPacked := []string{"img_001.jpg", "img_002.jpg"}
	if !reflect.DeepEqual(archiver.packedFiles, wantPacked) {
		t.Fatalf("packed files = %v, want %v", archiver.packedFiles, wantPacked)
	}

	savedDir := filepath.Join(cfg.Paths.OutputDir, "Beach Set_compressed")
	for _, name := range []string{"img_001.webp", "img_002.webp"} {
		if _, err := os.Stat(filepath.Join(savedDir, name)); err != nil {
			t.Fatalf("saved compressed image %s: %v", name, err)
		}
	}

	if job := soleJob(t, store); job.Status != queue.StatusCompleted {
		t.Fatalf("status = %q, want %q", job.Status, queue.StatusCompleted)
	}
}
