package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/yeka/zip"

	"github.com/runzip/runzip/pkg/paths"
)

// ErrEntryPointNotFound means the declared entry point is absent from
// the staged archive contents.
var ErrEntryPointNotFound = errors.New("entry point not found in archive")

// ScriptExtension marks entry-point scripts; matching files get the
// executable bit after extraction, as do dot-less files.
const ScriptExtension = ".py"

// ExecPolicy abstracts the host's ability to mark staged files
// executable, so the extractor stays portable and testable.
type ExecPolicy interface {
	Supported() bool
	MarkExecutable(path string) error
}

// OSExecPolicy is the real-filesystem policy. Hosts without a POSIX
// permission model report unsupported and the bit is never set.
type OSExecPolicy struct{}

func (OSExecPolicy) Supported() bool {
	return runtime.GOOS != "windows"
}

func (OSExecPolicy) MarkExecutable(p string) error {
	return os.Chmod(p, 0o755)
}

// Extract unpacks the archive into dest in stored order, decrypting with
// password when one is given. A single failed entry, a bad password
// included, aborts the whole run. Entries resolving outside dest are
// rejected before anything is written.
func Extract(
	archivePath, dest, password string,
	perms ExecPolicy,
) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("create staging dir: %w", err)
	}

	count := 0
	for _, f := range r.File {
		name := paths.Normalize(f.Name)
		if err := paths.ValidateRelPath(name); err != nil {
			return count, fmt.Errorf(
				"unsafe entry %q: %w", f.Name, err,
			)
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		if !paths.IsWithinDir(dest, target) {
			return count, fmt.Errorf(
				"entry escapes staging dir: %q", f.Name,
			)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, fmt.Errorf(
					"mkdir %s: %w", name, err,
				)
			}
			continue
		}

		if password != "" {
			f.SetPassword(password)
		}
		if err := writeEntry(f, target); err != nil {
			return count, err
		}

		if perms != nil && perms.Supported() &&
			wantsExecBit(name) {
			if err := perms.MarkExecutable(target); err != nil {
				return count, fmt.Errorf(
					"chmod %s: %w", name, err,
				)
			}
		}
		count++
	}
	return count, nil
}

func writeEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", f.Name, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(
		filepath.Dir(target), 0o755,
	); err != nil {
		return fmt.Errorf("mkdir parent: %w", err)
	}

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}

	_, copyErr := io.Copy(out, rc)
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", f.Name, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", f.Name, closeErr)
	}
	return nil
}

func wantsExecBit(name string) bool {
	base := path.Base(name)
	return strings.HasSuffix(base, ScriptExtension) ||
		!strings.Contains(base, ".")
}

// ResolveEntryPoint locates the declared entry point inside a staging
// directory after extraction.
func ResolveEntryPoint(
	stagedDir, name string,
) (string, error) {
	full := filepath.Join(
		stagedDir, filepath.FromSlash(name),
	)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf(
			"%s: %w", name, ErrEntryPointNotFound,
		)
	}
	return full, nil
}
