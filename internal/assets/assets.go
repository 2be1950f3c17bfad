// Package assets reconciles a local game directory against the resource
// manifest: it checksums what is already on disk and downloads only what is
// missing or corrupt.
package assets

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/caedis/babylonia-terminal/internal/downloader"
	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/manifest"
	"github.com/caedis/babylonia-terminal/internal/progress"
)

// Source provides the game info and its resource list.
type Source interface {
	GetInfo(ctx context.Context) (*manifest.GameInfo, error)
	FetchResources(ctx context.Context, info *manifest.GameInfo) ([]manifest.Resource, error)
}

// VerifyError reports a file that could not be checked.
type VerifyError struct {
	Dest string
	Err  error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verification failed for %s: %v", e.Dest, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Engine synchronizes a game directory with the manifest.
type Engine struct {
	Manifest   Source
	Downloader *downloader.Client
	// Workers bounds both verification and download parallelism. Zero selects
	// the CPU count.
	Workers int
	// Interval throttles progress updates. Zero selects progress.DefaultInterval.
	Interval time.Duration
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.NumCPU()
}

// Download verifies outputDir against the manifest and fetches every missing
// or corrupt file. It returns outputDir once all files are in place.
func (e *Engine) Download(ctx context.Context, outputDir string, r progress.Reporter) (string, error) {
	r = progress.OrNop(r)
	log := logging.L().With(zap.String("dir", outputDir))

	info, err := e.Manifest.GetInfo(ctx)
	if err != nil {
		return "", err
	}
	resources, err := e.Manifest.FetchResources(ctx, info)
	if err != nil {
		return "", err
	}
	log.Debug("manifest loaded", zap.String("version", info.Version), zap.Int("resources", len(resources)))

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating game dir: %w", err)
	}

	n := e.workers()
	logging.Infoln("Checking game files, this can take a while...")
	toDownload, err := Verify(ctx, outputDir, resources, n)
	if err != nil {
		return "", err
	}
	log.Debug("verification done", zap.Int("to_download", len(toDownload)))

	r.Setup(manifest.TotalSize(toDownload), "Downloading game")
	agg := progress.NewAggregator(r, e.Interval)

	client := e.Downloader
	if client == nil {
		client = downloader.New()
	}

	for start := 0; start < len(toDownload); start += n {
		end := min(start+n, len(toDownload))

		batch := make([]downloader.Download, 0, end-start)
		for _, res := range toDownload[start:end] {
			dl, err := e.plan(info, outputDir, res)
			if err != nil {
				return "", err
			}
			batch = append(batch, dl)
		}

		err := client.Run(ctx, batch, n, func(dl downloader.Download) downloader.ProgressFunc {
			tr := agg.Track()
			return tr.Report
		})
		if err != nil {
			agg.Flush()
			return "", err
		}
	}

	agg.Flush()
	r.Done()
	return outputDir, nil
}

func (e *Engine) plan(info *manifest.GameInfo, outputDir string, res manifest.Resource) (downloader.Download, error) {
	path, err := LocalPath(outputDir, res.Dest)
	if err != nil {
		return downloader.Download{}, err
	}
	url, err := info.ResourceURL(res)
	if err != nil {
		return downloader.Download{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return downloader.Download{}, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return downloader.Download{URL: url, Path: path, Size: res.Size}, nil
}

// Verify checks every resource against the files under dir using workers
// parallel chunks, and returns the resources that must be downloaded in
// manifest order. Files whose checksum does not match are deleted. A file
// that cannot be read does not stop the other checks; all such failures are
// joined into the returned error.
func Verify(ctx context.Context, dir string, resources []manifest.Resource, workers int) ([]manifest.Resource, error) {
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		missing []int
		errs    []error
		sem     = semaphore.NewWeighted(int64(workers))
		g       errgroup.Group
	)

	chunk := (len(resources) + workers - 1) / workers
	for start := 0; start < len(resources); start += chunk {
		start := start
		end := min(start+chunk, len(resources))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := sem.Acquire(ctx, 1); err != nil {
					return err
				}
				need, err := checkResource(dir, resources[i])
				sem.Release(1)

				mu.Lock()
				if err != nil {
					errs = append(errs, &VerifyError{Dest: resources[i].Dest, Err: err})
				} else if need {
					missing = append(missing, i)
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.Ints(missing)
	out := make([]manifest.Resource, 0, len(missing))
	for _, i := range missing {
		out = append(out, resources[i])
	}
	return out, nil
}

// checkResource reports whether res has to be downloaded, deleting a local
// copy with the wrong checksum.
func checkResource(dir string, res manifest.Resource) (bool, error) {
	path, err := LocalPath(dir, res.Dest)
	if err != nil {
		return false, err
	}

	sum, err := fileMD5(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	if strings.EqualFold(sum, res.MD5) {
		return false, nil
	}

	logging.L().Debug("checksum mismatch", zap.String("dest", res.Dest), zap.String("want", res.MD5), zap.String("got", sum))
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("removing corrupt file: %w", err)
	}
	return true, nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LocalPath maps a manifest destination like "/PGR_Data/level0" to a path
// under dir, rejecting destinations that escape it.
func LocalPath(dir, dest string) (string, error) {
	rel := strings.TrimLeft(filepath.FromSlash(dest), string(os.PathSeparator))
	if rel == "" {
		return "", fmt.Errorf("empty resource path %q", dest)
	}

	cleanDir := filepath.Clean(dir)
	path := filepath.Clean(filepath.Join(cleanDir, rel))
	if !strings.HasPrefix(path, cleanDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal resource path: %s", dest)
	}
	return path, nil
}
