package dialect

import (
	"strings"
)

// QuoteIdentList quotes every name and joins them with ", ".
func QuoteIdentList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
