// Package archive unpacks the tarballs that runtime and graphics layer
// releases ship as.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/caedis/babylonia-terminal/internal/logging"
)

// ErrUnsupportedFormat is returned for files that are neither gzip nor xz
// compressed tarballs.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Extract unpacks the tarball at src into destDir and returns the names of the
// top-level entries it created, sorted.
func Extract(src, destDir string) ([]string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	r, err := decompressor(src, f)
	if err != nil {
		return nil, err
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", destDir, err)
	}

	roots := map[string]struct{}{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(src), err)
		}

		name := strings.TrimPrefix(filepath.ToSlash(hdr.Name), "./")
		if name == "" || name == "." {
			continue
		}
		destPath, err := safeJoin(destDir, name)
		if err != nil {
			return nil, err
		}
		roots[strings.SplitN(name, "/", 2)[0]] = struct{}{}

		if err := writeEntry(tr, hdr, destDir, destPath); err != nil {
			return nil, fmt.Errorf("extracting %s: %w", name, err)
		}
	}

	out := make([]string, 0, len(roots))
	for root := range roots {
		out = append(out, root)
	}
	sort.Strings(out)
	logging.Debugf("Verbose: extracted %s into %s roots=%v\n", filepath.Base(src), destDir, out)
	return out, nil
}

func decompressor(name string, r io.Reader) (io.Reader, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return gz, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening xz stream: %w", err)
		}
		return xr, nil
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupportedFormat)
}

// safeJoin rejects entries that would land outside destDir.
func safeJoin(destDir, name string) (string, error) {
	cleanDest := filepath.Clean(destDir)
	cleanPath := filepath.Clean(filepath.Join(destDir, name))
	if cleanPath != cleanDest && !strings.HasPrefix(cleanPath, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	return cleanPath, nil
}

func writeEntry(tr *tar.Reader, hdr *tar.Header, destDir, destPath string) error {
	mode := os.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(destPath, 0755)

	case tar.TypeSymlink:
		target := hdr.Linkname
		resolved := target
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.Dir(destPath), target)
		}
		if _, err := safeJoin(destDir, mustRel(destDir, resolved)); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		os.Remove(destPath)
		return os.Symlink(target, destPath)

	case tar.TypeLink:
		src, err := safeJoin(destDir, strings.TrimPrefix(filepath.ToSlash(hdr.Linkname), "./"))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		os.Remove(destPath)
		return os.Link(src, destPath)

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		if mode == 0 {
			mode = 0644
		}
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	// Device nodes, fifos and pax headers carry nothing we need.
	return nil
}

func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}
