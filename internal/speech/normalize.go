package speech

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeKey derives the dedupe key for an announcement: runs of
// whitespace collapse to one space and the text is case folded. The key
// is never spoken or displayed.
func NormalizeKey(text string) string {
	return cases.Fold().String(strings.Join(strings.Fields(text), " "))
}
