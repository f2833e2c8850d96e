package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacrawl/pkg/logger"
)

func TestNewManagerSeedsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp4"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.gif.part"), []byte("partial"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	m, err := NewManager(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Count())
	assert.True(t, m.Contains("a.jpg"))
	assert.True(t, m.Contains("b.mp4"))
	assert.False(t, m.Contains("c.gif"))
	assert.False(t, m.Contains("c.gif.part"))
	assert.False(t, m.Contains("sub"))

	_, err = os.Stat(filepath.Join(dir, "c.gif.part"))
	assert.True(t, os.IsNotExist(err), "stale partial download should be removed")
}

func TestNewManagerLogsPartialCleanup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4.part"), []byte("partial"), 0644))

	log := logger.NewTestLogger()
	_, err := NewManagerWithLogger(dir, log)
	require.NoError(t, err)

	assert.True(t, log.HasMessage("Removed partial download"))
	assert.Empty(t, log.GetMessagesByLevel("WARN"))
}

func TestNewManagerWarnsWhenPartialCannotBeRemoved(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4.part"), []byte("partial"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "done.jpg"), []byte("done"), 0644))
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	log := logger.NewTestLogger()
	m, err := NewManagerWithLogger(dir, log)
	require.NoError(t, err)

	assert.True(t, log.HasMessage("Could not remove partial download"))
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
	assert.True(t, m.Contains("done.jpg"))
	assert.False(t, m.Contains("clip.mp4.part"))
}

func TestNewManagerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "forum.example.com-thread-{n}.html")
	m, err := NewManager(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, m.Dir())
	assert.DirExists(t, dir)
}

func TestReserveIsIdempotent(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	assert.True(t, m.Reserve("x.jpg"))
	assert.False(t, m.Reserve("x.jpg"))
	assert.True(t, m.Contains("x.jpg"))
	assert.Equal(t, 1, m.Count())
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	data := []byte("media bytes")
	n, err := m.Save(bytes.NewReader(data), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	content, err := os.ReadFile(filepath.Join(dir, "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, data, content)
	assert.NoFileExists(t, filepath.Join(dir, "clip.mp4.part"))
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "head"), nil
	}
	return 0, errors.New("connection reset")
}

func TestSaveRemovesPartialOnError(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	_, err = m.Save(&failingReader{}, "broken.jpg")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "broken.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "broken.jpg.part"))
}

func TestSaveRejectsEscapingNames(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"..", "../evil.jpg", "a/b.jpg"} {
		_, err := m.Save(io.LimitReader(bytes.NewReader(nil), 0), name)
		assert.Error(t, err, name)
	}
}
