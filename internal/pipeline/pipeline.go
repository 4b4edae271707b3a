// Package pipeline publishes a folder of markdown articles: it scans the
// folder, extracts metadata, uploads local images, stores posts and records
// what was published so unchanged files are skipped next time.
package pipeline

import (
	"context"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/prettylog/blogpipe/internal/article"
	"github.com/prettylog/blogpipe/internal/cache"
	"github.com/prettylog/blogpipe/internal/extractor"
	"github.com/prettylog/blogpipe/internal/gid"
	"github.com/prettylog/blogpipe/internal/metrics"
	"github.com/prettylog/blogpipe/internal/objectstore"
	"github.com/prettylog/blogpipe/internal/scanner"
	"github.com/prettylog/blogpipe/internal/store"
)

type IDSource interface {
	Generate() (uint64, error)
}

type ProcessedIndex interface {
	Get(ctx context.Context, checksum string) (cache.Record, bool, error)
	Mark(ctx context.Context, checksum string, rec cache.Record) error
}

type Locker interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result is the outcome for one article.
type Result struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
	PostID uint64 `json:"post_id,string,omitempty"`
	Slug   string `json:"slug,omitempty"`
	Files  int    `json:"files,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Report struct {
	RunID    string        `json:"run_id"`
	Dir      string        `json:"dir"`
	Found    int           `json:"found"`
	Created  int           `json:"created"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Results  []Result      `json:"results"`
}

type Runner struct {
	IDs       IDSource
	Extractor extractor.Extractor
	Objects   objectstore.Store
	Repo      Repository
	// Processed and Lock are optional.
	Processed ProcessedIndex
	Lock      Locker
	UserID    int64
	Workers   int
	// Force republishes articles already recorded in Processed.
	Force  bool
	Logger *slog.Logger
}

// Run publishes every markdown file below dir. Per-article failures are
// recorded in the report; the returned error is reserved for failures that
// stop the whole run (lock held, unreadable dir, cancellation).
func (r *Runner) Run(ctx context.Context, dir string) (Report, error) {
	logger := r.logger()
	report := Report{RunID: uuid.NewString(), Dir: dir, Started: time.Now()}
	logger = logger.With("run_id", report.RunID)

	if r.Lock != nil {
		release, err := r.Lock.Acquire(ctx)
		if err != nil {
			return report, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.WarnContext(ctx, "pipeline: releasing run lock failed", "error", err)
			}
		}()
	}

	files, err := scanner.Scan(ctx, dir)
	if err != nil {
		return report, errors.Wrapf(err, "pipeline: scan %s", dir)
	}
	report.Found = len(files)
	logger.InfoContext(ctx, "pipeline run started", "dir", dir, "articles", len(files))

	report.Results = make([]Result, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Results[i] = r.process(ctx, logger, files[i])
			}
		}()
	}
	for i := range files {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, res := range report.Results {
		if res.Path == "" {
			report.Results[i] = Result{Path: files[i], Status: StatusFailed, Error: "not processed: run cancelled"}
			res = report.Results[i]
		}
		switch res.Status {
		case StatusCreated:
			report.Created++
		case StatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}
	report.Duration = time.Since(report.Started)
	metrics.PipelineRunDurationSeconds.Observe(report.Duration.Seconds())
	logger.InfoContext(ctx, "pipeline run finished",
		"found", report.Found,
		"created", report.Created,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration.Round(time.Millisecond).String(),
	)
	return report, ctx.Err()
}

func (r *Runner) process(ctx context.Context, logger *slog.Logger, path string) Result {
	res, err := r.publish(ctx, logger, path)
	if err != nil {
		res = Result{Path: path, Status: StatusFailed, Error: err.Error()}
		var regression *gid.ClockRegressionError
		if errors.As(err, &regression) {
			logger.ErrorContext(ctx, "pipeline: clock moved backwards while minting ids",
				"path", path,
				"machine_id", regression.MachineID,
				"drift_ms", regression.Drift.Milliseconds(),
			)
		} else {
			logger.ErrorContext(ctx, "pipeline: article failed", "path", path, "error", err)
		}
	}
	metrics.PipelineArticlesTotal.WithLabelValues(string(res.Status)).Inc()
	return res
}

func (r *Runner) publish(ctx context.Context, logger *slog.Logger, path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, errors.Wrap(err, "read")
	}
	a, err := article.Parse(path, raw)
	if err != nil {
		return Result{}, err
	}

	if r.Processed != nil && !r.Force {
		rec, ok, err := r.Processed.Get(ctx, a.Checksum)
		if err != nil {
			logger.WarnContext(ctx, "pipeline: processed lookup failed", "path", path, "error", err)
		} else if ok {
			logger.DebugContext(ctx, "pipeline: unchanged article skipped", "path", path, "post_id", rec.PostID)
			return Result{Path: path, Status: StatusSkipped, PostID: rec.PostID, Slug: rec.Slug}, nil
		}
	}

	meta, err := r.Extractor.Extract(ctx, a)
	if err != nil {
		return Result{}, errors.Wrap(err, "extract metadata")
	}

	postID, err := r.IDs.Generate()
	if err != nil {
		return Result{}, errors.Wrap(err, "mint post id")
	}

	files, urls, err := r.upload(ctx, logger, a, postID)
	if err != nil {
		return Result{}, err
	}

	post, err := r.Repo.Publish(ctx, Publication{
		Post: store.NewPost{
			ID:          postID,
			UserID:      r.UserID,
			Title:       meta.Title,
			Slug:        meta.Slug,
			Summary:     meta.Summary,
			Body:        article.RewriteImages(a.Body, urls),
			Checksum:    a.Checksum,
			Draft:       a.Draft,
			PublishedAt: a.Date,
		},
		Categories: meta.Categories,
		Tags:       meta.Tags,
		Files:      files,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "publish")
	}

	if r.Processed != nil {
		if err := r.Processed.Mark(ctx, a.Checksum, cache.Record{PostID: post.ID, Slug: post.Slug}); err != nil {
			logger.WarnContext(ctx, "pipeline: recording processed article failed", "path", path, "error", err)
		}
	}
	logger.InfoContext(ctx, "pipeline: article published",
		"path", path,
		"post_id", post.ID,
		"gid", gid.PostGID(post.ID).String(),
		"slug", post.Slug,
		"files", len(files),
	)
	return Result{Path: path, Status: StatusCreated, PostID: post.ID, Slug: post.Slug, Files: len(files)}, nil
}

// upload stores every local image of a and returns the file rows and the
// markdown path to URL mapping. Missing images are logged and left as-is.
func (r *Runner) upload(ctx context.Context, logger *slog.Logger, a article.Article, postID uint64) ([]store.File, map[string]string, error) {
	var files []store.File
	urls := make(map[string]string)
	base := filepath.Dir(a.Path)
	for _, ref := range a.Images {
		local := ref.Path
		if !filepath.IsAbs(local) {
			local = filepath.Join(base, filepath.FromSlash(ref.Path))
		}
		f, err := os.Open(local)
		if err != nil {
			logger.WarnContext(ctx, "pipeline: image not found", "path", a.Path, "image", ref.Path)
			continue
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, nil, errors.Wrapf(err, "stat %s", ref.Path)
		}

		fileID, err := r.IDs.Generate()
		if err != nil {
			f.Close()
			return nil, nil, errors.Wrap(err, "mint file id")
		}
		ext := filepath.Ext(local)
		contentType := mime.TypeByExtension(strings.ToLower(ext))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		key := objectstore.Key(postID, fileID, ext)
		url, err := r.Objects.Put(ctx, key, f, contentType)
		f.Close()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "upload %s", ref.Path)
		}
		urls[ref.Path] = url
		files = append(files, store.File{
			ID:           fileID,
			ObjectKey:    key,
			URL:          url,
			OriginalPath: ref.Path,
			ContentType:  contentType,
			Size:         info.Size(),
		})
	}
	return files, urls, nil
}

func (r *Runner) workers() int {
	if r.Workers < 1 {
		return 1
	}
	return r.Workers
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
