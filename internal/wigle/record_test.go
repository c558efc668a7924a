package wigle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPreservesKeyOrder(t *testing.T) {
	t.Parallel()

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"zeta":1,"alpha":"a","mid":{"x":[1, 2]}}`), &rec))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, rec.Keys())

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","mid":{"x":[1,2]}}`, string(out))
}

func TestRecordCell(t *testing.T) {
	t.Parallel()

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(
		`{"s":"text","n":12.50,"b":true,"z":null,"l":["4096", "x"],"o":{"k": 1}}`), &rec))

	assert.Equal(t, "text", rec.Cell("s"))
	assert.Equal(t, "12.50", rec.Cell("n"))
	assert.Equal(t, "true", rec.Cell("b"))
	assert.Equal(t, "", rec.Cell("z"))
	assert.Equal(t, `["4096","x"]`, rec.Cell("l"))
	assert.Equal(t, `{"k":1}`, rec.Cell("o"))
	assert.Equal(t, "", rec.Cell("missing"))
}

func TestRecordStrings(t *testing.T) {
	t.Parallel()

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"s":"4096","l":["a",1,"b"],"n":5,"z":null}`), &rec))

	got, ok := rec.Strings("s")
	require.True(t, ok)
	assert.Equal(t, []string{"4096"}, got)

	got, ok = rec.Strings("l")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok = rec.Strings("n")
	assert.False(t, ok)
	_, ok = rec.Strings("z")
	assert.False(t, ok)
	_, ok = rec.Strings("missing")
	assert.False(t, ok)
}

func TestRecordRejectsNonObject(t *testing.T) {
	t.Parallel()

	var rec Record
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &rec))
	require.Error(t, json.Unmarshal([]byte(`"x"`), &rec))
}

func TestNewRecord(t *testing.T) {
	t.Parallel()

	rec, err := NewRecord("netid", "aa:bb", "rcois", []string{"4096"})
	require.NoError(t, err)
	assert.Equal(t, []string{"netid", "rcois"}, rec.Keys())
	assert.Equal(t, "aa:bb", rec.Cell("netid"))

	_, err = NewRecord("odd")
	require.Error(t, err)
	_, err = NewRecord(1, "x")
	require.Error(t, err)
}

func TestCursorUnmarshal(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  Cursor
		empty bool
	}{
		{"string", `"abc"`, "abc", false},
		{"number", `12345`, "12345", false},
		{"null", `null`, "", true},
		{"empty string", `""`, "", true},
		{"blank string", `"  "`, "  ", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var c Cursor
			require.NoError(t, json.Unmarshal([]byte(tc.input), &c))
			assert.Equal(t, tc.want, c)
			assert.Equal(t, tc.empty, c.Empty())
		})
	}
}
