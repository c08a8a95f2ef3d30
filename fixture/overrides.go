package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/sjson"
)

// applyOverrides sets every node matched by each JSONPath expression in set
// to the associated value. Expressions are matched against the original body
// and applied in lexical order.
func applyOverrides(body []byte, set map[string]any) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("overrides need a JSON body: %w", err)
	}

	exprs := make([]string, 0, len(set))
	for expr := range set {
		exprs = append(exprs, expr)
	}
	sort.Strings(exprs)

	out := body
	for _, expr := range exprs {
		keys, err := matchKeys(expr, doc)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			out, err = sjson.SetBytes(out, key, set[expr])
			if err != nil {
				return nil, fmt.Errorf("override %s: set %s: %w", expr, key, err)
			}
		}
	}
	return out, nil
}

// matchKeys resolves a JSONPath expression to sjson keys of concrete nodes.
// Each [*] is expanded against doc before the expression reaches jsonpath,
// so nested wildcards address the right elements.
func matchKeys(expr string, doc any) ([]string, error) {
	keys, err := expandWildcards(expr, doc, true)
	if err != nil {
		return nil, fmt.Errorf("override %s: %w", expr, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("override %s matched nothing", expr)
	}
	return keys, nil
}

// expandWildcards replaces the first [*] of expr by every index or member of
// the node in front of it and recurses. A plain path without wildcards maps
// directly onto an sjson key; top marks the caller's own expression, which may
// name a member that does not exist yet.
func expandWildcards(expr string, doc any, top bool) ([]string, error) {
	i := strings.Index(expr, "[*]")
	if i < 0 {
		if parts, ok := plainPath(expr); ok {
			if !top {
				if _, err := jsonpath.Get(expr, doc); err != nil {
					// Element lacks the member.
					return nil, nil
				}
			}
			return []string{sjsonKey(parts)}, nil
		}
		return pathKeys(expr, doc)
	}

	prefix, rest := expr[:i], expr[i+len("[*]"):]
	if _, ok := plainPath(prefix); !ok && prefix != "$" {
		return pathKeys(expr, doc)
	}
	node, err := jsonpath.Get(prefix, doc)
	if err != nil {
		return nil, nil
	}

	var subs []string
	switch v := node.(type) {
	case []any:
		for idx := range v {
			subs = append(subs, prefix+"["+strconv.Itoa(idx)+"]"+rest)
		}
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			subs = append(subs, prefix+"["+strconv.Quote(name)+"]"+rest)
		}
	}

	var keys []string
	for _, sub := range subs {
		more, err := expandWildcards(sub, doc, false)
		if err != nil {
			return nil, err
		}
		keys = append(keys, more...)
	}
	return keys, nil
}

// pathKeys handles the remaining JSONPath forms (recursive descent, filters,
// member wildcards) through the normalized paths jsonpath reports. Those paths
// are only reliable for a single such selector.
func pathKeys(expr string, doc any) ([]string, error) {
	if n := selectorCount(expr); n > 1 {
		return nil, fmt.Errorf("%d wildcard or filter selectors, only [*] may be repeated", n)
	}
	matches, err := jsonpath.GetWithPaths(expr, doc)
	if err != nil {
		return nil, err
	}
	paths, ok := matches.(map[string]interface{})
	if !ok || !allNormalized(paths) {
		return nil, nil
	}
	keys := make([]string, 0, len(paths))
	for p := range paths {
		key, err := toSJSONKey(p)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func selectorCount(expr string) int {
	return strings.Count(expr, "[*]") + strings.Count(expr, ".*") +
		strings.Count(expr, "..") + strings.Count(expr, "?(")
}

func allNormalized(paths map[string]interface{}) bool {
	for p := range paths {
		if !strings.HasPrefix(p, "$[") {
			return false
		}
	}
	return true
}

// toSJSONKey converts a normalized path such as $["log"]["entries"][0] into
// the sjson key log.entries.0.
func toSJSONKey(normalized string) (string, error) {
	rest, ok := strings.CutPrefix(normalized, "$")
	if !ok {
		return "", fmt.Errorf("path %q does not start with $", normalized)
	}
	var parts []string
	for rest != "" {
		part, next, err := bracketSegment(rest)
		if err != nil {
			return "", fmt.Errorf("malformed path %q: %w", normalized, err)
		}
		parts = append(parts, part)
		rest = next
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("path %q names the root", normalized)
	}
	return sjsonKey(parts), nil
}

// bracketSegment parses one leading ["name"], ['name'] or [N] selector.
func bracketSegment(s string) (part, rest string, err error) {
	if len(s) < 3 || s[0] != '[' {
		return "", "", fmt.Errorf("expected [ at %q", s)
	}
	switch s[1] {
	case '"':
		quoted, err := strconv.QuotedPrefix(s[1:])
		if err != nil {
			return "", "", err
		}
		part, _ = strconv.Unquote(quoted)
		rest = s[1+len(quoted):]
	case '\'':
		end := strings.IndexByte(s[2:], '\'')
		if end < 0 {
			return "", "", errors.New("unterminated quote")
		}
		part = s[2 : 2+end]
		rest = s[3+end:]
	default:
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", "", errors.New("unterminated index")
		}
		part = s[1:end]
		if _, err := strconv.Atoi(part); err != nil {
			return "", "", fmt.Errorf("bad index %q", part)
		}
		rest = s[end:]
	}
	rest, ok := strings.CutPrefix(rest, "]")
	if !ok {
		return "", "", errors.New("missing ]")
	}
	return part, rest, nil
}

var sjsonSpecial = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`!`, `\!`,
)

func escapeSJSON(part string) string {
	return sjsonSpecial.Replace(part)
}

// plainPath splits an expression made only of .name, ['name'], ["name"] and
// [N] selectors into its member names.
func plainPath(expr string) ([]string, bool) {
	rest, ok := strings.CutPrefix(expr, "$")
	if !ok {
		return nil, false
	}
	var parts []string
	for rest != "" {
		switch rest[0] {
		case '.':
			end := strings.IndexAny(rest[1:], ".[")
			if end < 0 {
				end = len(rest) - 1
			}
			name := rest[1 : 1+end]
			if name == "" || strings.ContainsAny(name, "*?()@'\" ") {
				return nil, false
			}
			parts = append(parts, name)
			rest = rest[1+end:]
		case '[':
			part, next, err := bracketSegment(rest)
			if err != nil {
				return nil, false
			}
			parts = append(parts, part)
			rest = next
		default:
			return nil, false
		}
	}
	return parts, len(parts) > 0
}

func sjsonKey(parts []string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = escapeSJSON(part)
	}
	return strings.Join(escaped, ".")
}
