package fixture

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
	"pgregory.net/rapid"
)

const harBody = `{
  "log": {
    "version": "1.2",
    "entries": [
      {"request": {"url": "https://example.com/a", "cookies": [{"name": "session", "value": "abc"}]}},
      {"request": {"url": "https://example.com/b", "cookies": [{"name": "session", "value": "def"}]}}
    ]
  }
}`

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()
	out, err := applyOverrides([]byte(harBody), map[string]any{
		"$.log.version": "1.3",
		"$.log.entries[*].request.cookies[*].value": "REDACTED",
	})
	require.NoError(t, err)

	doc := decode(t, out)
	log := doc["log"].(map[string]any)
	assert.Equal(t, "1.3", log["version"])
	for _, entry := range log["entries"].([]any) {
		request := entry.(map[string]any)["request"].(map[string]any)
		for _, cookie := range request["cookies"].([]any) {
			assert.Equal(t, "REDACTED", cookie.(map[string]any)["value"])
			assert.Equal(t, "session", cookie.(map[string]any)["name"])
		}
	}
}

func TestApplyOverridesErrors(t *testing.T) {
	t.Parallel()
	_, err := applyOverrides([]byte("not json"), map[string]any{"$.a": 1})
	assert.Error(t, err)

	_, err = applyOverrides([]byte(`{"a": []}`), map[string]any{"$.a[*].b": 1})
	assert.Error(t, err)
}

func TestOverridesServed(t *testing.T) {
	t.Parallel()
	srv := start(t, Config{Resources: map[string]Resource{
		"/github.com.har": {
			Body: []byte(harBody),
			Set:  map[string]any{"$.log.version": "9"},
		},
	}})

	resp := fetch(t, http.MethodGet, srv.URL("/github.com.har"))
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "application/json", resp.header.Get("Content-Type"))
	assert.Equal(t, "9", decode(t, []byte(resp.body))["log"].(map[string]any)["version"])
}

func TestToSJSONKey(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		`$["log"]["entries"][0]["request"]`: "log.entries.0.request",
		`$["log"]["entries"]["1"]`:          "log.entries.1",
		`$['a']['b.c']`:                     `a.b\.c`,
		`$["we\"ird"]`:                      `we"ird`,
		`$["x*y"]`:                          `x\*y`,
	} {
		got, err := toSJSONKey(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}

	for _, in := range []string{"", "log", "$", `$["a"`, `$[a]`, `$["a"]x`} {
		_, err := toSJSONKey(in)
		assert.Error(t, err, in)
	}
}

func TestPlainPath(t *testing.T) {
	t.Parallel()
	for expr, want := range map[string][]string{
		"$.user.tokens[0]":         {"user", "tokens", "0"},
		`$["log"]['entries'][1].x`: {"log", "entries", "1", "x"},
		`$["a.b"]`:                 {"a.b"},
	} {
		got, ok := plainPath(expr)
		if assert.True(t, ok, expr) {
			assert.Equal(t, want, got, expr)
		}
	}

	for _, expr := range []string{"$", "$..price", "$.items[*].id", "$.*", "$.a[?(@.b)]", "a.b", "$.a["} {
		_, ok := plainPath(expr)
		assert.False(t, ok, expr)
	}
}

func TestMatchKeys(t *testing.T) {
	t.Parallel()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(`{
		"entries": [
			{"cookies": [{"value": "a"}, {"value": "b"}]},
			{"cookies": []},
			{"cookies": [{"name": "no value"}, {"value": "c"}]}
		],
		"headers": {"x-token": {"value": "t"}, "x.dotted": {"value": "d"}}
	}`), &doc))

	testCases := []struct {
		expr string
		want []string
	}{
		{"$.entries[*].cookies[*].value", []string{
			"entries.0.cookies.0.value",
			"entries.0.cookies.1.value",
			"entries.2.cookies.1.value",
		}},
		{"$.entries[*].cookies", []string{"entries.0.cookies", "entries.1.cookies", "entries.2.cookies"}},
		{"$.headers[*].value", []string{"headers.x-token.value", `headers.x\.dotted.value`}},
		{"$[*][1].cookies[*].value", nil},
		{"$.entries[0].cookies[1].value", []string{"entries.0.cookies.1.value"}},
		{"$.missing.value", []string{"missing.value"}},
	}
	for _, tc := range testCases {
		keys, err := matchKeys(tc.expr, doc)
		if tc.want == nil {
			assert.Error(t, err, tc.expr)
			continue
		}
		if assert.NoError(t, err, tc.expr) {
			assert.Equal(t, tc.want, keys, tc.expr)
		}
	}
}

func TestMatchKeysRejectsRepeatedSelectors(t *testing.T) {
	t.Parallel()
	doc := map[string]any{"a": []any{map[string]any{"b": 1}}}
	_, err := matchKeys("$..a..b", doc)
	assert.ErrorContains(t, err, "only [*] may be repeated")
}

// Escaped keys must address exactly the literal member name.
func TestEscapeSJSONProperty(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-z][a-z0-9.*? -]{0,8}`).Draw(t, "name")
		out, err := sjson.Set(`{}`, escapeSJSON(name), "v")
		if err != nil {
			t.Fatalf("set %q: %v", name, err)
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(out), &doc); err != nil {
			t.Fatalf("decode %s: %v", out, err)
		}
		if len(doc) != 1 || doc[name] != "v" {
			t.Fatalf("set %q produced %s", name, out)
		}
	})
}

func TestPrepareResourcesLeavesInputUntouched(t *testing.T) {
	t.Parallel()
	in := map[string]Resource{"/a": {Body: []byte(`{"a":1}`), Set: map[string]any{"$.a": 2}}}
	srv, err := Start(context.Background(), Config{Resources: in})
	require.NoError(t, err)
	defer srv.Close()

	assert.Equal(t, `{"a":1}`, string(in["/a"].Body))
	assert.Equal(t, `{"a":2}`, fetch(t, http.MethodGet, srv.URL("/a")).body)
}
