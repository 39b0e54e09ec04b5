package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeDump(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menu.ndjson.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(lines))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestStreamFile(t *testing.T) {
	path := writeDump(t, `{"name":"A","dishes":[{"id":1,"name":"x","price":1}]}

{"name":"B"}
`)
	out := make(chan record, 8)

	require.NoError(t, streamFile(context.Background(), zap.NewNop(), path, out))
	close(out)

	var got []record
	for r := range out {
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].entry.Name)
	assert.Equal(t, 1, got[0].line)
	assert.Equal(t, "B", got[1].entry.Name)
	assert.Equal(t, 3, got[1].line)
	assert.Equal(t, "menu.ndjson.gz", got[1].file)
}

func TestStreamFile_BadLine(t *testing.T) {
	path := writeDump(t, "{\"name\":\"A\"}\nnot json\n")
	out := make(chan record, 8)

	err := streamFile(context.Background(), zap.NewNop(), path, out)
	require.ErrorContains(t, err, "menu.ndjson.gz:2")
}

func TestStreamFile_Canceled(t *testing.T) {
	path := writeDump(t, "{\"name\":\"A\"}\n{\"name\":\"B\"}\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := streamFile(ctx, zap.NewNop(), path, make(chan record))
	require.ErrorIs(t, err, context.Canceled)
}
