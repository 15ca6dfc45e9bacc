// Package testutil provides shared test assertions: comparing reply
// messages and error kinds with readable diff output on failure.
package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// TestingT is the subset of *testing.T assertions need.
type TestingT interface {
	Errorf(format string, args ...interface{})
	Helper()
}

// AssertJSONEqual marshals both values to JSON and fails with a structural
// diff (not a raw string diff) when they disagree.
func AssertJSONEqual(t TestingT, actual, expected any) {
	t.Helper()

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Errorf("marshal actual: %v", err)
		return
	}
	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Errorf("marshal expected: %v", err)
		return
	}

	var actualDoc, expectedDoc map[string]interface{}
	if err := json.Unmarshal(wrapIfArray(actualJSON), &actualDoc); err != nil {
		t.Errorf("unmarshal actual: %v", err)
		return
	}
	if err := json.Unmarshal(wrapIfArray(expectedJSON), &expectedDoc); err != nil {
		t.Errorf("unmarshal expected: %v", err)
		return
	}

	differ := gojsondiff.New()
	diff := differ.CompareObjects(expectedDoc, actualDoc)
	if !diff.Modified() {
		return
	}

	fmtr := formatter.NewAsciiFormatter(expectedDoc, formatter.AsciiFormatterConfig{})
	out, ferr := fmtr.Format(diff)
	if ferr != nil {
		t.Errorf("values differ (diff render failed: %v)\nactual: %s\nexpected: %s", ferr, actualJSON, expectedJSON)
		return
	}
	t.Errorf("values differ:\n%s", out)
}

func wrapIfArray(data []byte) []byte {
	trimmed := len(data) > 0 && data[0] == '['
	if !trimmed {
		return data
	}
	return []byte(fmt.Sprintf(`{"array":%s}`, data))
}
