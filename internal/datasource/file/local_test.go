package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, b []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(p, b, 0o600))
	return p
}

func readAll(t *testing.T, path, enc string) string {
	t.Helper()
	src, err := Open(path, enc)
	require.NoError(t, err)
	defer src.Close()
	b, err := io.ReadAll(src)
	require.NoError(t, err)
	return string(b)
}

func TestOpenStripsUTF8BOM(t *testing.T) {
	t.Parallel()

	p := writeFile(t, []byte("\xEF\xBB\xBFid,name\n1,a\n"))
	assert.Equal(t, "id,name\n1,a\n", readAll(t, p, ""))
}

func TestOpenLatin1(t *testing.T) {
	t.Parallel()

	p := writeFile(t, []byte("caf\xE9\n"))
	assert.Equal(t, "café\n", readAll(t, p, "ISO-8859-1"))
}

func TestOpenUTF16WithBOM(t *testing.T) {
	t.Parallel()

	// "a,b\n" as UTF-16LE with BOM; the BOM overrides the default encoding.
	p := writeFile(t, []byte{0xFF, 0xFE, 'a', 0, ',', 0, 'b', 0, '\n', 0})
	assert.Equal(t, "a,b\n", readAll(t, p, "utf-8"))
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	p := writeFile(t, []byte("x"))
	_, err = Open(p, "no-such-charset")
	assert.Error(t, err)
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	p := writeFile(t, []byte("h\r\n1\r\n2\r3\n"))
	n, err := CountLines(context.Background(), p, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
