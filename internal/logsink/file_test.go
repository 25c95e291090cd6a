package logsink

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimSuffix(string(b), LineSeparator)
	if text == "" {
		return nil
	}
	return strings.Split(text, LineSeparator)
}

func TestFile_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawlergo_log.txt")

	s, err := Open(Config{File: path})
	require.NoError(t, err)
	s.Command("crawlergo http://a/")
	s.Line("GET http://a/ 200")
	s.Info("process exit code: 0")
	require.NoError(t, s.Close())

	s, err = Open(Config{File: path})
	require.NoError(t, err)
	s.Error("execution error: boom")
	require.NoError(t, s.Close())

	assert.Equal(t, []string{
		"[INFO] full command: crawlergo http://a/",
		"GET http://a/ 200",
		"[INFO] process exit code: 0",
		"[ERROR] execution error: boom",
	}, readLines(t, path))
}

func TestFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "run.log")
	s, err := Open(Config{File: path})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Equal(t, path, s.Path())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFile_RotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	s, err := Open(Config{File: path, MaxSizeMB: 1, MaxBackups: 2})
	require.NoError(t, err)
	s.Info("hello")
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"[INFO] hello"}, readLines(t, path))
}

func TestFile_ConsoleMirror(t *testing.T) {
	color.NoColor = true
	var mirror bytes.Buffer
	path := filepath.Join(t.TempDir(), "run.log")

	s, err := Open(Config{File: path, Console: true, Mirror: &mirror})
	require.NoError(t, err)
	s.Command("crawlergo http://a/")
	s.Line("crawler output")
	s.Info("process exit code: 0")
	s.Error("execution error: x")
	require.NoError(t, s.Close())

	assert.Equal(t, "[INFO] full command: crawlergo http://a/\n[ERROR] execution error: x\n", mirror.String())
	assert.Len(t, readLines(t, path), 4)
}

func TestFile_ConcurrentWritesStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	s, err := Open(Config{File: path})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Line("line-from-worker-abcdefghijklmnopqrstuvwxyz")
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 800)
	for _, l := range lines {
		assert.Equal(t, "line-from-worker-abcdefghijklmnopqrstuvwxyz", l)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	m.Command("x y")
	m.Line("raw")
	m.Error("bad")
	assert.Equal(t, []string{"[INFO] full command: x y", "raw", "[ERROR] bad"}, m.Lines())
	assert.Equal(t, 1, m.Count("[ERROR]"))
	Discard.Info("ignored")
}
