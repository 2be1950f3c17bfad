package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/caedis/babylonia-terminal/internal/logging"
)

const IndexURL = "https://prod-alicdn-gamestarter.kurogame.com/pcstarter/prod/game/G143/4/index.json"

// CacheFile is the name of the cached game info inside the config dir.
const CacheFile = "version-cache"

// ErrNoCDN is returned when the index lists no CDN to download from.
var ErrNoCDN = errors.New("manifest lists no cdn")

// ErrCorruptCache is returned by Cached when the cache file cannot be parsed.
var ErrCorruptCache = errors.New("version cache is corrupt")

type Index struct {
	Default GameInfo `json:"default"`
}

type GameInfo struct {
	CDNList           []CDN     `json:"cdnList"`
	Changelog         Changelog `json:"changelog"`
	Resources         string    `json:"resources"`
	ResourcesBasePath string    `json:"resourcesBasePath"`
	Version           string    `json:"version"`
}

type CDN struct {
	K1  int64  `json:"K1"`
	K2  int64  `json:"K2"`
	P   int64  `json:"P"`
	URL string `json:"url"`
}

type Changelog struct {
	ZhHans string `json:"zh-Hans"`
	En     string `json:"en"`
}

type Resources struct {
	Resource []Resource `json:"resource"`
}

// Resource is one file of the game. Dest is slash separated and rooted at the
// game directory, e.g. "/PGR_Data/level0".
type Resource struct {
	Dest       string `json:"dest"`
	MD5        string `json:"md5"`
	SampleHash string `json:"sampleHash"`
	Size       int64  `json:"size"`
}

// FirstCDN returns the base URL of the first CDN.
func (g *GameInfo) FirstCDN() (string, error) {
	if len(g.CDNList) == 0 || g.CDNList[0].URL == "" {
		return "", ErrNoCDN
	}
	return g.CDNList[0].URL, nil
}

// ResourceURL returns the download URL of r.
func (g *GameInfo) ResourceURL(r Resource) (string, error) {
	cdn, err := g.FirstCDN()
	if err != nil {
		return "", err
	}
	return joinURL(cdn, g.ResourcesBasePath, r.Dest), nil
}

// TotalSize sums the sizes of every resource.
func TotalSize(resources []Resource) int64 {
	var total int64
	for _, r := range resources {
		total += r.Size
	}
	return total
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out += "/" + p
		}
	}
	return out
}

// Client talks to the launcher index and caches the last seen game info.
type Client struct {
	HTTP     *http.Client
	IndexURL string
	CacheDir string
}

// New returns a client using the production index, caching under cacheDir.
func New(cacheDir string) *Client {
	return &Client{HTTP: http.DefaultClient, IndexURL: IndexURL, CacheDir: cacheDir}
}

func (c *Client) cachePath() string {
	return filepath.Join(c.CacheDir, CacheFile)
}

// GetInfo returns the cached game info, fetching and caching it when no
// usable cache exists.
func (c *Client) GetInfo(ctx context.Context) (*GameInfo, error) {
	if info, err := c.Cached(); err == nil && info != nil {
		return info, nil
	}

	info, err := c.fetchInfo(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.saveCache(info); err != nil {
		return nil, err
	}
	return info, nil
}

// Cached returns the cached game info, or nil when none exists.
func (c *Client) Cached() (*GameInfo, error) {
	data, err := os.ReadFile(c.cachePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading version cache: %w", err)
	}

	var info GameInfo
	if err := json.Unmarshal(data, &info); err != nil {
		logging.Debugf("Verbose: ignoring unreadable version cache: %v\n", err)
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	return &info, nil
}

// NeedUpdate fetches the live game info and reports whether its version
// differs from the cached one. A changed version overwrites the cache, so a
// single update is reported once.
func (c *Client) NeedUpdate(ctx context.Context) (bool, error) {
	fresh, err := c.fetchInfo(ctx)
	if err != nil {
		return false, err
	}

	// An unparsable cache is treated as missing and reseeded below.
	cached, err := c.Cached()
	if err != nil && !errors.Is(err, ErrCorruptCache) {
		return false, err
	}
	if cached != nil && cached.Version == fresh.Version {
		return false, nil
	}

	if err := c.saveCache(fresh); err != nil {
		return false, err
	}
	if cached == nil {
		// Nothing to compare against: the installed files are already the latest.
		return false, nil
	}
	logging.Debugf("Verbose: game version changed %s -> %s\n", cached.Version, fresh.Version)
	return true, nil
}

// Latest fetches the live game info without touching the cache.
func (c *Client) Latest(ctx context.Context) (*GameInfo, error) {
	return c.fetchInfo(ctx)
}

// FetchResources downloads the resource list referenced by info.
func (c *Client) FetchResources(ctx context.Context, info *GameInfo) ([]Resource, error) {
	cdn, err := info.FirstCDN()
	if err != nil {
		return nil, err
	}

	var res Resources
	if err := c.getJSON(ctx, joinURL(cdn, info.Resources), &res); err != nil {
		return nil, fmt.Errorf("fetching resources: %w", err)
	}
	return res.Resource, nil
}

func (c *Client) fetchInfo(ctx context.Context) (*GameInfo, error) {
	url := c.IndexURL
	if url == "" {
		url = IndexURL
	}

	var idx Index
	if err := c.getJSON(ctx, url, &idx); err != nil {
		return nil, fmt.Errorf("fetching game info: %w", err)
	}
	return &idx.Default, nil
}

func (c *Client) saveCache(info *GameInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding version cache: %w", err)
	}
	if err := os.MkdirAll(c.CacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp := c.cachePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing version cache: %w", err)
	}
	if err := os.Rename(tmp, c.cachePath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing version cache: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing body: %w", err)
	}
	return nil
}
