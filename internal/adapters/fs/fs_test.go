package fs_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/core/domain"
)

func TestWalker_WalkFiles(t *testing.T) {
	// tmp/
	//   .git/config
	//   .staging/build.hcl
	//   ignored/file
	//   lfs/zlib.json
	//   lfs/zlib.json.lock
	//   README.md
	tmpDir := t.TempDir()
	for _, rel := range []string{
		".git/config",
		".staging/build.hcl",
		"ignored/file",
		"lfs/zlib.json",
		"lfs/zlib.json.lock",
		"README.md",
	} {
		path := filepath.Join(tmpDir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(rel), 0o600))
	}

	var files []string
	for path := range fs.NewWalker().WalkFiles(tmpDir, []string{"ignored", "*.lock"}) {
		rel, err := filepath.Rel(tmpDir, path)
		require.NoError(t, err)
		files = append(files, rel)
	}

	assert.Equal(t, []string{"README.md", filepath.Join("lfs", "zlib.json")}, files)
}

func TestWalker_WalkFiles_MissingRoot(t *testing.T) {
	var files []string
	for path := range fs.NewWalker().WalkFiles(filepath.Join(t.TempDir(), "missing"), nil) {
		files = append(files, path)
	}
	assert.Empty(t, files)
}

func TestWalker_WalkFiles_EarlyBreak(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), nil, 0o600))
	}

	count := 0
	for range fs.NewWalker().WalkFiles(tmpDir, nil) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestWriteFileAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir", "index.json")

	require.NoError(t, fs.WriteFileAtomic(path, []byte("one")))
	require.NoError(t, fs.WriteFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(domain.FilePerm), info.Mode().Perm())
}

func TestWriteFileAtomic_ParentIsFile(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := fs.WriteFileAtomic(filepath.Join(blocker, "file"), []byte("x"))
	assert.Error(t, err)
}

func TestLock_ExcludesConcurrentHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifests", "lfs", "12.1.json")

	first, err := fs.Lock(path)
	require.NoError(t, err)
	assert.FileExists(t, path+domain.LockSuffix)

	var (
		mu       sync.Mutex
		acquired bool
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, err := fs.Lock(path)
		if err != nil {
			return
		}
		mu.Lock()
		acquired = true
		mu.Unlock()
		_ = second.Unlock()
	}()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.False(t, acquired, "second lock must wait for the first to be released")
	mu.Unlock()

	require.NoError(t, first.Unlock())
	wg.Wait()
	assert.True(t, acquired)
}

func TestLock_UnlockTwice(t *testing.T) {
	lock, err := fs.Lock(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())
}

func TestLock_Fails(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := fs.Lock(filepath.Join(blocker, "nested", "file"))
	assert.ErrorIs(t, err, domain.ErrLockFailed)
}
