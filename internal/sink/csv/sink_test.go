package csvsink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

func decodeRecords(t *testing.T, raw string) []wigle.Record {
	t.Helper()
	var out []wigle.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "0_40.1_-75.5_20240301_120000.csv")
	sink, err := Open(path, Options{EscapeChar: DefaultEscapeChar})
	require.NoError(t, err)

	first := decodeRecords(t, `[{"netid":"aa","ssid":"one","rcois":"4096"},{"netid":"bb","ssid":"two","rcois":"5a03ba0000"}]`)
	second := decodeRecords(t, `[{"netid":"cc","ssid":"three","rcois":"4096"}]`)

	n, err := sink.Append(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = sink.Append(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	assert.Equal(t, []string{
		"netid,ssid,rcois",
		"aa,one,4096",
		"bb,two,5a03ba0000",
		"cc,three,4096",
	}, lines)
	rows, err := CountRows(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
}

func TestAppendProjectsOntoFirstColumns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := Open(path, Options{})
	require.NoError(t, err)

	_, err = sink.Append(context.Background(), decodeRecords(t, `[{"a":1,"b":"x"},{"a":2,"c":true}]`))
	require.NoError(t, err)
	_, err = sink.Append(context.Background(), decodeRecords(t, `[{"c":false,"d":"dropped","a":3}]`))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, []string{"a", "b", "c"}, sink.header)
	assert.Equal(t, []string{
		"a,b,c",
		"1,x,",
		"2,,true",
		"3,,false",
	}, readLines(t, path))
}

func TestAppendAdoptsExistingHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("ssid,netid\nold,00\n"), 0o600))

	sink, err := Open(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ssid", "netid"}, sink.header)

	_, err = sink.Append(context.Background(), decodeRecords(t, `[{"netid":"aa","ssid":"new"}]`))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, []string{"ssid,netid", "old,00", "new,aa"}, readLines(t, path))
}

func TestAppendRendersCells(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := Open(path, Options{EscapeChar: `\`})
	require.NoError(t, err)

	recs := decodeRecords(t, `[{"ssid":"a,b","path":"C:\\wifi","rcois":["4096","aa"],"n":null,"lat":40.125}]`)
	_, err = sink.Append(context.Background(), recs)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, `"a,b",C:\\wifi,"[""4096"",""aa""]",,40.125`, lines[1])
}

func TestAppendEmptyBatchWritesNothing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := Open(path, Options{})
	require.NoError(t, err)

	n, err := sink.Append(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, sink.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	rows, err := CountRows(path)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestAppendHonorsContext(t *testing.T) {
	t.Parallel()

	sink, err := Open(filepath.Join(t.TempDir(), "out.csv"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sink.Append(ctx, decodeRecords(t, `[{"a":1}]`))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCountRowsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := CountRows(filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCountRowsQuotedNewlines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("ssid,netid\n\"multi\nline\",aa\nplain,bb\n"), 0o600))

	rows, err := CountRows(path)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
}

func TestOpenerReturnsSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	sink, err := Opener(Options{})(path)
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())
	require.NoError(t, sink.Close())
}
