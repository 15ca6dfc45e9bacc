package testutil

import (
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
)

// AssertTextEqual compares two multi-line strings line by line, trimming
// trailing whitespace before comparing, and fails with a unified diff
// rather than a side-by-side dump. It exists for the cache-graph and
// broker-reply snapshots tests want to assert as a whole rather than
// field by field, where a raw string comparison would produce an
// unreadable failure message.
func AssertTextEqual(t TestingT, actual, expected string) {
	t.Helper()

	normalizedActual := trimTrailingWhitespace(actual)
	normalizedExpected := trimTrailingWhitespace(expected)
	if normalizedActual == normalizedExpected {
		return
	}

	edits := myers.ComputeEdits("", normalizedExpected, normalizedActual)
	unified := gotextdiff.ToUnified("expected", "actual", normalizedExpected, edits)
	t.Errorf("text assertion failed - unified diff:\n%s", unified)
}

func trimTrailingWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
