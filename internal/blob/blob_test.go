package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every driver must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := Exists(ctx, s, "coda/age.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, "coda/age.json")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	info, err := s.Put(ctx, "coda/age.json", bytes.NewReader([]byte(`[{"a":1}]`)))
	require.NoError(t, err)
	assert.Equal(t, "coda/age.json", info.Key)
	assert.Equal(t, int64(9), info.Size)

	_, err = s.Put(ctx, "coda/gender.json", bytes.NewReader([]byte(`[]`)))
	require.NoError(t, err)
	_, err = s.Put(ctx, "out/records.jsonl", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	rc, err := s.Get(ctx, "coda/age.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `[{"a":1}]`, string(data))

	infos, err := s.List(ctx, "coda/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "coda/age.json", infos[0].Key)
	assert.Equal(t, "coda/gender.json", infos[1].Key)

	require.NoError(t, s.Delete(ctx, "coda/age.json"))
	ok, err = Exists(ctx, s, "coda/age.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFSStore(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())
	exerciseStore(t, s)
}

func TestFSStore_Overwrite(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Put(ctx, "a.json", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	info, err := s.Put(ctx, "a.json", bytes.NewReader([]byte("three")))
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
}

func TestFSStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "   ", "/etc/passwd", "../outside", "a/../../b"} {
		_, err := s.Get(context.Background(), key)
		assert.Error(t, err, key)
		assert.False(t, errors.Is(err, ErrNotFound), key)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	assert.Equal(t, DriverMemory, s.Driver())
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	s, err = Open(ctx, Config{Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(ctx, Config{Driver: "s3"})
	assert.ErrorContains(t, err, "bucket required")

	_, err = Open(ctx, Config{Driver: "ftp"})
	assert.ErrorContains(t, err, "unknown driver")
}
