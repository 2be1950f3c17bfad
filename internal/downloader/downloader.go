package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/caedis/babylonia-terminal/internal/logging"
	"github.com/caedis/babylonia-terminal/internal/progress"
)

type Download struct {
	URL string
	// Path is the final location of the file.
	Path string
	// Size is the expected size in bytes, 0 when unknown.
	Size int64
}

// ProgressFunc receives the number of bytes written so far for one file.
type ProgressFunc func(current int64)

// Client performs HTTP downloads. Bearer is sent as an Authorization header
// when non-empty.
type Client struct {
	HTTP   *http.Client
	Bearer string
}

// New returns a client using http.DefaultClient.
func New() *Client {
	return &Client{HTTP: http.DefaultClient}
}

func (c *Client) httpClient() *http.Client {
	if c == nil || c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

// Run downloads every file with at most concurrency requests in flight. The
// first failure cancels the remaining downloads of the batch and is returned.
// track, when non-nil, is called once per download to obtain its progress sink.
func (c *Client) Run(ctx context.Context, downloads []Download, concurrency int, track func(Download) ProgressFunc) error {
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, dl := range downloads {
		dl := dl
		var onProgress ProgressFunc
		if track != nil {
			onProgress = track(dl)
		}
		g.Go(func() error {
			return c.Fetch(gctx, dl, onProgress)
		})
	}

	return g.Wait()
}

// Fetch downloads one file to dl.Path through a temporary file, reporting the
// absolute byte count to onProgress as data arrives.
func (c *Client) Fetch(ctx context.Context, dl Download, onProgress ProgressFunc) error {
	name := filepath.Base(dl.Path)
	logging.Debugf("Verbose: download start file=%s url=%s\n", dl.Path, dl.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", name, err)
	}
	if c != nil && c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", name, resp.StatusCode)
	}

	tmpPath := dl.Path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}

	var dst io.Writer = f
	if onProgress != nil {
		onProgress(0)
		dst = &progressWriter{w: f, onProgress: onProgress}
	}

	_, err = io.Copy(dst, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", name, closeErr)
	}

	if err := os.Rename(tmpPath, dl.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing %s: %w", name, err)
	}
	logging.Debugf("Verbose: download complete file=%s\n", dl.Path)

	return nil
}

// DownloadToFile downloads a single file and reports it on r with a byte total
// taken from the response when dl.Size is unknown.
func (c *Client) DownloadToFile(ctx context.Context, dl Download, label string, r progress.Reporter) error {
	r = progress.OrNop(r)
	total := dl.Size
	if total <= 0 {
		total = progress.UnknownTotal
	}
	r.Setup(total, label)
	defer r.Done()

	return c.Fetch(ctx, dl, func(current int64) { r.Progress(current) })
}

type progressWriter struct {
	w          io.Writer
	written    int64
	onProgress ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.onProgress(p.written)
	return n, err
}
