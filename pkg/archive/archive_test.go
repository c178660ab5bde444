package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeka/zip"

	"github.com/runzip/runzip/pkg/paths"
)

func makeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func archiveNames(t *testing.T, archivePath string) []string {
	t.Helper()
	r, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	require.NoError(t, err)
	return out
}

type recordPolicy struct {
	supported bool
	marked    []string
}

func (p *recordPolicy) Supported() bool { return p.supported }

func (p *recordPolicy) MarkExecutable(path string) error {
	p.marked = append(p.marked, filepath.Base(path))
	return nil
}

func TestBuildExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"main.py":       "print('hi')",
		"lib/util.py":   "def f(): pass",
		"data/cfg.toml": "x = 1",
		"bin/tool":      "#!/bin/sh\n",
	}
	makeTree(t, src, files)

	dest := filepath.Join(t.TempDir(), "out.zip")
	count, err := Build(src, dest, nil, "")
	assert.NoError(t, err)
	assert.Equal(t, 4, count)

	staging := t.TempDir()
	n, err := Extract(dest, staging, "", nil)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, files, readTree(t, staging))
}

func TestBuildExtractEncrypted(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"main.py":  "print('secret')",
		"data.bin": "payload",
	}
	makeTree(t, src, files)

	dest := filepath.Join(t.TempDir(), "out.zip")
	_, err := Build(src, dest, nil, "hunter2")
	require.NoError(t, err)

	staging := t.TempDir()
	n, err := Extract(dest, staging, "hunter2", nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, files, readTree(t, staging))
}

func TestExtractWrongPassword(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{"main.py": "x"})

	dest := filepath.Join(t.TempDir(), "out.zip")
	_, err := Build(src, dest, nil, "correct")
	require.NoError(t, err)

	_, err = Extract(dest, t.TempDir(), "wrong", nil)
	assert.Error(t, err)

	_, err = Extract(dest, t.TempDir(), "", nil)
	assert.Error(t, err)
}

func TestBuildHonorsIgnoreFile(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{
		"a.py":       "code",
		".gitignore": "*.log\n",
		"b.log":      "noise",
	})

	dest := filepath.Join(t.TempDir(), "out.zip")
	patterns := paths.CompilePatterns(src, nil)
	count, err := Build(src, dest, patterns, "")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t,
		[]string{"a.py", ".gitignore"},
		archiveNames(t, dest),
	)
}

func TestBuildEmptyPatternKeepsGitDir(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{
		".git/HEAD":  "ref: refs/heads/main",
		".gitignore": "*.log\n",
		"x.log":      "noise",
		"main.py":    "code",
	})

	dest := filepath.Join(t.TempDir(), "out.zip")
	patterns := paths.CompilePatterns(src, []string{""})
	_, err := Build(src, dest, patterns, "")
	assert.NoError(t, err)

	names := archiveNames(t, dest)
	assert.Contains(t, names, ".git/HEAD")
	assert.NotContains(t, names, "x.log")
}

func TestBuildSkipsExcludedSubtree(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{
		"keep.py":             "x",
		"node_modules/a/b.js": "y",
	})

	dest := filepath.Join(t.TempDir(), "out.zip")
	count, err := Build(src, dest, []string{"node_modules"}, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"keep.py"}, archiveNames(t, dest))
}

func TestBuildExcludesDestinationFile(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{"main.py": "x"})

	// Reference the destination through a non-canonical spelling.
	dest := filepath.Join(src, ".", "out.zip")
	count, err := Build(src, dest, nil, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"main.py"}, archiveNames(t, dest))
}

func TestExtractRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")

	f, err := os.Create(archivePath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("pwned"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	staging := filepath.Join(dir, "staging")
	_, err = Extract(archivePath, staging, "", nil)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractExecBits(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{
		"main.py":   "x",
		"tool":      "y",
		"notes.txt": "z",
	})

	dest := filepath.Join(t.TempDir(), "out.zip")
	_, err := Build(src, dest, nil, "")
	require.NoError(t, err)

	policy := &recordPolicy{supported: true}
	_, err = Extract(dest, t.TempDir(), "", policy)
	assert.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"main.py", "tool"}, policy.marked,
	)
}

func TestExtractExecBitsUnsupportedHost(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string]string{"main.py": "x"})

	dest := filepath.Join(t.TempDir(), "out.zip")
	_, err := Build(src, dest, nil, "")
	require.NoError(t, err)

	policy := &recordPolicy{supported: false}
	_, err = Extract(dest, t.TempDir(), "", policy)
	assert.NoError(t, err)
	assert.Empty(t, policy.marked)
}

func TestResolveEntryPoint(t *testing.T) {
	staging := t.TempDir()
	makeTree(t, staging, map[string]string{"main.py": "x"})

	full, err := ResolveEntryPoint(staging, "main.py")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(staging, "main.py"), full)

	_, err = ResolveEntryPoint(staging, "missing.py")
	assert.ErrorIs(t, err, ErrEntryPointNotFound)
}
