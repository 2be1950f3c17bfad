package component

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caedis/babylonia-terminal/internal/downloader"
	"github.com/caedis/babylonia-terminal/internal/github"
)

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0755, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

type fakeResolver struct {
	release github.Release
	err     error

	gotVersion string
	gotExclude []string
}

func (f *fakeResolver) Resolve(_ context.Context, _, _, version string, exclude ...string) (*github.Release, *github.ReleaseAsset, error) {
	f.gotVersion, f.gotExclude = version, exclude
	if f.err != nil {
		return nil, nil, f.err
	}
	asset := github.PickArchive(f.release.Assets, exclude...)
	if asset == nil {
		return nil, nil, github.ErrAssetNotFound
	}
	return &f.release, asset, nil
}

func serve(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProtonInstall(t *testing.T) {
	t.Parallel()

	body := tarGz(t, map[string]string{
		"GE-Proton9-20/proton":         "#!/usr/bin/env python3",
		"GE-Proton9-20/files/bin/wine": "wine",
	})
	server := serve(t, body)
	configDir := t.TempDir()

	// A previous install is replaced.
	require.NoError(t, os.MkdirAll(filepath.Join(configDir, "proton", "stale"), 0755))

	res := &fakeResolver{release: github.Release{TagName: "GE-Proton9-20", Assets: []github.ReleaseAsset{
		{Name: "GE-Proton9-20.sha512sum", BrowserDownloadURL: server.URL + "/sum"},
		{Name: "GE-Proton9-20.tar.gz", Size: int64(len(body)), BrowserDownloadURL: server.URL + "/proton.tar.gz"},
	}}}

	inst := Proton(configDir, "1", res, downloader.New())
	require.NoError(t, inst.Install(context.Background(), nil))

	assert.Equal(t, "1", res.gotVersion)
	assert.FileExists(t, filepath.Join(configDir, "proton", "proton"))
	assert.FileExists(t, filepath.Join(configDir, "proton", "files", "bin", "wine"))
	assert.NoDirExists(t, filepath.Join(configDir, "proton", "stale"))
	assert.NoFileExists(t, filepath.Join(configDir, "GE-Proton9-20.tar.gz"))
	assert.NoDirExists(t, filepath.Join(configDir, "GE-Proton9-20"))
}

func TestDXVKInstallSkipsNativeBuilds(t *testing.T) {
	t.Parallel()

	body := tarGz(t, map[string]string{"dxvk-2.4/x64/d3d11.dll": "dll"})
	server := serve(t, body)
	configDir := t.TempDir()

	res := &fakeResolver{release: github.Release{TagName: "v2.4", Assets: []github.ReleaseAsset{
		{Name: "dxvk-native-2.4-steamrt-sniper.tar.gz", BrowserDownloadURL: server.URL + "/native"},
		{Name: "dxvk-2.4.tar.gz", BrowserDownloadURL: server.URL + "/dxvk"},
	}}}

	require.NoError(t, DXVK(configDir, "0", res, nil).Install(context.Background(), nil))
	assert.Equal(t, []string{"native"}, res.gotExclude)
	assert.FileExists(t, filepath.Join(configDir, "dxvk", "x64", "d3d11.dll"))
}

func TestInstallMissingAsset(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{release: github.Release{TagName: "v1", Assets: []github.ReleaseAsset{{Name: "notes.txt"}}}}
	err := Proton(t.TempDir(), "0", res, nil).Install(context.Background(), nil)
	assert.True(t, errors.Is(err, github.ErrAssetNotFound), "err=%v", err)
}

func TestInstallCorruptArchive(t *testing.T) {
	t.Parallel()

	server := serve(t, []byte("not a tarball"))
	res := &fakeResolver{release: github.Release{TagName: "v1", Assets: []github.ReleaseAsset{
		{Name: "GE-Proton1-1.tar.gz", BrowserDownloadURL: server.URL},
	}}}

	err := Proton(t.TempDir(), "0", res, nil).Install(context.Background(), nil)
	assert.ErrorContains(t, err, "unpacking GE-Proton1-1.tar.gz")
}

func TestPickRoot(t *testing.T) {
	t.Parallel()

	got, err := pickRoot([]string{"a", "dxvk-2.4"}, "dxvk-2.4")
	require.NoError(t, err)
	assert.Equal(t, "dxvk-2.4", got)

	got, err = pickRoot([]string{"renamed"}, "dxvk-2.4")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got)

	_, err = pickRoot([]string{"a", "b"}, "c")
	assert.Error(t, err)
}
