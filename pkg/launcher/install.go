package launcher

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var archNames = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
}

// DownloadURL returns the release artifact URL for the current
// platform, or an error when no build exists for it.
func (l *Launcher) DownloadURL() (string, error) {
	arch, ok := archNames[runtime.GOARCH]
	if !ok {
		return "", fmt.Errorf(
			"no launcher build for %s/%s",
			runtime.GOOS, runtime.GOARCH,
		)
	}
	base := fmt.Sprintf("%s/%s", l.BaseURL, l.Version)
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf(
			"%s/uv-%s-pc-windows-msvc.zip", base, arch,
		), nil
	case "darwin":
		return fmt.Sprintf(
			"%s/uv-%s-apple-darwin.tar.gz", base, arch,
		), nil
	case "linux":
		return fmt.Sprintf(
			"%s/uv-%s-unknown-linux-gnu.tar.gz", base, arch,
		), nil
	}
	return "", fmt.Errorf(
		"no launcher build for %s/%s",
		runtime.GOOS, runtime.GOARCH,
	)
}

// Install downloads the pinned launcher release and places its binary
// under the home root. Already-installed binaries are left alone.
// Returns the installed path.
func (l *Launcher) Install(ctx context.Context) (string, error) {
	if err := os.MkdirAll(l.Home, 0o755); err != nil {
		return "", fmt.Errorf("create home: %w", err)
	}
	target := filepath.Join(l.Home, l.binaryName())
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	url, err := l.DownloadURL()
	if err != nil {
		return "", err
	}

	tmpDir, err := os.MkdirTemp(l.Home, "runzip-download-")
	if err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	body, err := l.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var extracted string
	if strings.HasSuffix(url, ".zip") {
		extracted, err = l.extractFromZip(body, tmpDir)
	} else {
		extracted, err = l.extractFromTarGz(body, tmpDir)
	}
	if err != nil {
		return "", err
	}
	if extracted == "" {
		return "", fmt.Errorf(
			"launcher binary not found in downloaded archive",
		)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(extracted, 0o755); err != nil {
			return "", fmt.Errorf("chmod launcher: %w", err)
		}
	}
	if err := os.Rename(extracted, target); err != nil {
		return "", fmt.Errorf("install launcher: %w", err)
	}
	return target, nil
}

func (l *Launcher) fetch(
	ctx context.Context, url string,
) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(
		ctx, "GET", url, nil,
	)
	if err != nil {
		return nil, err
	}
	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download launcher: %w", err)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(
			io.LimitReader(resp.Body, 4<<10),
		)
		resp.Body.Close()
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf(
			"download launcher: HTTP %d: %s",
			resp.StatusCode, msg,
		)
	}
	return resp.Body, nil
}

// The artifact layout varies per release; find the binary by basename
// wherever it sits.
func (l *Launcher) extractFromTarGz(
	r io.Reader, dir string,
) (string, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if filepath.Base(hdr.Name) != l.binaryName() {
			continue
		}
		return copyOut(tr, filepath.Join(dir, l.binaryName()))
	}
}

func (l *Launcher) extractFromZip(
	r io.Reader, dir string,
) (string, error) {
	// zip needs random access; spool the download first.
	spool := filepath.Join(dir, "launcher.zip")
	f, err := os.Create(spool)
	if err != nil {
		return "", fmt.Errorf("spool download: %w", err)
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return "", fmt.Errorf("spool download: %w", copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("spool download: %w", closeErr)
	}

	zr, err := zip.OpenReader(spool)
	if err != nil {
		return "", fmt.Errorf("open download: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if filepath.Base(zf.Name) != l.binaryName() {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return "", fmt.Errorf(
				"read %s: %w", zf.Name, err,
			)
		}
		out, err := copyOut(
			rc, filepath.Join(dir, l.binaryName()),
		)
		rc.Close()
		return out, err
	}
	return "", nil
}

func copyOut(r io.Reader, target string) (string, error) {
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr != nil {
		return "", fmt.Errorf("write %s: %w", target, copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close %s: %w", target, closeErr)
	}
	return target, nil
}
