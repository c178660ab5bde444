package archive

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yeka/zip"

	"github.com/runzip/runzip/pkg/paths"
)

// Build walks root and writes every surviving regular file into a zip
// archive at dest, keyed by root-relative slash-normalized paths.
// Patterns come from paths.CompilePatterns; an excluded directory skips
// its whole subtree. A non-empty password encrypts each entry with
// AES-256. Returns the number of files packed.
func Build(
	root, dest string,
	patterns []string,
	password string,
) (int, error) {
	matcher := paths.NewMatcher(patterns)

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	destInfo, err := out.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}

	zw := zip.NewWriter(out)

	count := 0
	err = filepath.WalkDir(
		root,
		func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}
			if matcher.Match(rel) {
				slog.Debug("excluded", "path", rel)
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			// The archive may sit inside root under any spelling;
			// compare file identity, not path strings.
			if info, err := os.Stat(p); err == nil &&
				os.SameFile(info, destInfo) {
				return nil
			}

			if err := addFile(zw, p, rel, password); err != nil {
				return err
			}
			count++
			return nil
		},
	)
	if err != nil {
		return 0, err
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finalize archive: %w", err)
	}
	return count, nil
}

func addFile(
	zw *zip.Writer,
	absPath, relPath, password string,
) error {
	var (
		w   io.Writer
		err error
	)
	if password != "" {
		w, err = zw.Encrypt(
			relPath, password, zip.AES256Encryption,
		)
	} else {
		w, err = zw.Create(relPath)
	}
	if err != nil {
		return fmt.Errorf("add %s: %w", relPath, err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", relPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	return nil
}
