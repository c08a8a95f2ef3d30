package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	expected := filepath.Join(dir, "expected.txt")
	same := filepath.Join(dir, "same.txt")
	different := filepath.Join(dir, "different.txt")
	require.NoError(t, os.WriteFile(expected, []byte("Hello, World!\n"), 0o600))
	require.NoError(t, os.WriteFile(same, []byte("Hello, World!\n"), 0o600))
	require.NoError(t, os.WriteFile(different, []byte("Hello, Gopher!\n"), 0o600))

	assert.NoError(t, File(expected, same))

	err := File(expected, different)
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "bea8252ff4e80f41719ea13cdf007273", mismatch.ExpectedSum)
	assert.Contains(t, mismatch.Diff, "-Hello, World!")
	assert.Contains(t, mismatch.Diff, "+Hello, Gopher!")
	assert.Contains(t, err.Error(), different)

	err = File(expected, filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBytesBinaryHasNoDiff(t *testing.T) {
	t.Parallel()
	err := Bytes([]byte{0xff, 0xfe}, []byte{0xff, 0xfd})
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Empty(t, mismatch.Diff)
	assert.NoError(t, Bytes(nil, []byte{}))
}

func TestChanges(t *testing.T) {
	t.Parallel()
	expected := `{"cookie": "abc", "token": "xyz"}`
	actual := `{"cookie": "REDACTED", "token": "REDACTED"}`

	changes := Changes(expected, actual)
	require.Len(t, changes, 2)
	assert.Equal(t, Change{Removed: "abc", Inserted: "REDACTED"}, changes[0])
	assert.Equal(t, Change{Removed: "xyz", Inserted: "REDACTED"}, changes[1])

	assert.Empty(t, Changes("same", "same"))
	assert.Equal(t, []Change{{Inserted: "!"}}, Changes("hi", "hi!"))
}

func TestJSONPath(t *testing.T) {
	t.Parallel()
	har := []byte(`{"log": {"entries": [{"request": {"url": "https://a"}}, {"request": {"url": "https://b"}}]}}`)

	v, err := JSONPath(har, "$.log.entries[1].request.url")
	require.NoError(t, err)
	assert.Equal(t, "https://b", v)

	v, err = JSONPath(har, "$.log.entries[*].request.url")
	require.NoError(t, err)
	assert.Equal(t, []any{"https://a", "https://b"}, v)

	_, err = JSONPath([]byte("nope"), "$.a")
	assert.Error(t, err)
	_, err = JSONPath(har, "$.log.missing")
	assert.Error(t, err)
}
