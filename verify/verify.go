// Package verify compares downloaded files with the content a test expects.
package verify

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/PaesslerAG/jsonpath"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// MismatchError describes a downloaded file that differs from the expected
// one. Diff is a unified diff, empty for binary content.
type MismatchError struct {
	ExpectedName string
	ActualName   string
	ExpectedSum  string
	ActualSum    string
	Diff         string
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("%s (md5 %s) does not match %s (md5 %s)", e.ActualName, e.ActualSum, e.ExpectedName, e.ExpectedSum)
	if e.Diff != "" {
		msg += "\n" + e.Diff
	}
	return msg
}

// File compares the file at actualPath with the one at expectedPath.
func File(expectedPath, actualPath string) error {
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return fmt.Errorf("could not open file %s for reading: %w", expectedPath, err)
	}
	actual, err := os.ReadFile(actualPath)
	if err != nil {
		return fmt.Errorf("could not open file %s for reading: %w", actualPath, err)
	}
	return compare(expected, actual, expectedPath, actualPath)
}

// Bytes compares actual with expected content.
func Bytes(expected, actual []byte) error {
	return compare(expected, actual, "expected", "actual")
}

func compare(expected, actual []byte, expectedName, actualName string) error {
	expectedSum := md5.Sum(expected)
	actualSum := md5.Sum(actual)
	if expectedSum == actualSum {
		return nil
	}
	mismatch := &MismatchError{
		ExpectedName: expectedName,
		ActualName:   actualName,
		ExpectedSum:  hex.EncodeToString(expectedSum[:]),
		ActualSum:    hex.EncodeToString(actualSum[:]),
	}
	if utf8.Valid(expected) && utf8.Valid(actual) {
		mismatch.Diff = UnifiedDiff(expectedName, string(expected), actualName, string(actual))
	}
	return mismatch
}

func UnifiedDiff(fromName, from, toName, to string) string {
	edits := myers.ComputeEdits(span.URIFromPath(fromName), from, to)
	return fmt.Sprint(gotextdiff.ToUnified(fromName, toName, from, edits))
}

// Change pairs a removed fragment with the fragment that replaced it.
type Change struct {
	Removed  string
	Inserted string
}

// Changes lists the semantic edits that turn expected into actual. Equal
// runs are dropped and each deletion starts a new Change.
func Changes(expected, actual string) []Change {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(expected, actual, false))

	var changes []Change
	var current Change
	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			if current.Removed != "" && current.Inserted != "" {
				changes = append(changes, current)
				current = Change{}
			}
			current.Removed += diff.Text
		case diffmatchpatch.DiffInsert:
			current.Inserted += diff.Text
		default:
		}
	}
	if current.Removed != "" || current.Inserted != "" {
		changes = append(changes, current)
	}
	return changes
}

// JSONPath evaluates expr against a JSON document, e.g. a downloaded HAR.
func JSONPath(data []byte, expr string) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	v, err := jsonpath.Get(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("jsonpath %s: %w", expr, err)
	}
	return v, nil
}
