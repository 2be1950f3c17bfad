package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v63/github"
	"golang.org/x/oauth2"
)

// TokenEnv holds an optional GitHub token used for higher rate limits.
const TokenEnv = "BT_GITHUB_TOKEN"

const releasesPerPage = 30

var (
	// ErrReleaseNotFound is returned when an index or tag matches no release.
	ErrReleaseNotFound = errors.New("release not found")
	// ErrAssetNotFound is returned when a release carries no usable archive.
	ErrAssetNotFound = errors.New("asset not found in the github release")
)

// archiveSuffixes lists the archive formats the installer can unpack.
var archiveSuffixes = []string{".tar.gz", ".tgz", ".tar.xz", ".txz"}

// Release is the subset of GitHub's release API response we need.
type Release struct {
	TagName    string
	Name       string
	Prerelease bool
	Assets     []ReleaseAsset
}

// ReleaseAsset represents a downloadable file attached to a GitHub release.
type ReleaseAsset struct {
	Name               string
	Size               int64
	BrowserDownloadURL string
}

// Client lists releases of a repository.
type Client struct {
	gh *gh.Client
}

// NewClient returns a release client. A non-empty token authenticates
// requests with an oauth2 bearer token.
func NewClient(ctx context.Context, token string) *Client {
	var httpClient *http.Client
	if token = strings.TrimSpace(token); token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &Client{gh: gh.NewClient(httpClient)}
}

// TokenFromEnv returns the first non-empty of $BT_GITHUB_TOKEN and $GITHUB_TOKEN.
func TokenFromEnv() string {
	if t := os.Getenv(TokenEnv); t != "" {
		return t
	}
	return os.Getenv("GITHUB_TOKEN")
}

// WithBaseURL points the client at another API root, such as a GitHub
// Enterprise host or a test server.
func (c *Client) WithBaseURL(raw string) (*Client, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	c.gh.BaseURL = u
	return c, nil
}

// ListReleases returns the releases of owner/repo, newest first, as ordered by
// the API.
func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]Release, error) {
	rels, _, err := c.gh.Repositories.ListReleases(ctx, owner, repo, &gh.ListOptions{PerPage: releasesPerPage})
	if err != nil {
		return nil, fmt.Errorf("listing releases of %s/%s: %w", owner, repo, err)
	}

	releases := make([]Release, 0, len(rels))
	for _, rel := range rels {
		r := Release{
			TagName:    rel.GetTagName(),
			Name:       rel.GetName(),
			Prerelease: rel.GetPrerelease(),
		}
		for _, a := range rel.Assets {
			r.Assets = append(r.Assets, ReleaseAsset{
				Name:               a.GetName(),
				Size:               int64(a.GetSize()),
				BrowserDownloadURL: a.GetBrowserDownloadURL(),
			})
		}
		releases = append(releases, r)
	}
	return releases, nil
}

// Resolve lists the releases of owner/repo and returns the one selected by
// version together with its archive asset.
func (c *Client) Resolve(ctx context.Context, owner, repo, version string, exclude ...string) (*Release, *ReleaseAsset, error) {
	releases, err := c.ListReleases(ctx, owner, repo)
	if err != nil {
		return nil, nil, err
	}
	rel, err := SelectRelease(releases, version)
	if err != nil {
		return nil, nil, fmt.Errorf("%s/%s: %w", owner, repo, err)
	}
	asset := PickArchive(rel.Assets, exclude...)
	if asset == nil {
		return nil, nil, fmt.Errorf("%s/%s %s: %w", owner, repo, rel.TagName, ErrAssetNotFound)
	}
	return rel, asset, nil
}

// SelectRelease picks a release by index into releases or by tag name.
// An empty version selects the first (latest) release.
func SelectRelease(releases []Release, version string) (*Release, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		version = "0"
	}

	if idx, err := strconv.Atoi(version); err == nil {
		if idx < 0 || idx >= len(releases) {
			return nil, fmt.Errorf("index %d of %d releases: %w", idx, len(releases), ErrReleaseNotFound)
		}
		return &releases[idx], nil
	}

	for i := range releases {
		if strings.EqualFold(releases[i].TagName, version) {
			return &releases[i], nil
		}
	}
	return nil, fmt.Errorf("tag %q: %w", version, ErrReleaseNotFound)
}

// PickArchive returns the first asset that is an unpackable tarball and whose
// name contains none of the exclude substrings.
func PickArchive(assets []ReleaseAsset, exclude ...string) *ReleaseAsset {
	for i, a := range assets {
		if ArchiveBase(a.Name) == a.Name {
			continue
		}
		lower := strings.ToLower(a.Name)
		skip := false
		for _, ex := range exclude {
			if ex != "" && strings.Contains(lower, strings.ToLower(ex)) {
				skip = true
				break
			}
		}
		if !skip {
			return &assets[i]
		}
	}
	return nil
}

// ArchiveBase strips a known tarball suffix from name. Names without such a
// suffix are returned unchanged.
func ArchiveBase(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}
