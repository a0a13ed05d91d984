package pypi

import (
	"regexp"
	"strings"
)

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName applies PEP 503 name normalization: lowercase, with every run
// of '-', '_' and '.' collapsed to a single '-'. The index treats all spellings
// that normalize to the same string as the same project.
//
// Normalization is idempotent.
func NormalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// StubPrefix is the conventional prefix for stub-only distributions on the
// index (e.g. types-requests for requests).
const StubPrefix = "types-"

// StubName returns the name of the stub-only counterpart distribution for the
// given project name.
func StubName(name string) string {
	return StubPrefix + NormalizeName(name)
}
