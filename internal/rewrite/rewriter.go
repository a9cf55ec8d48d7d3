// Package rewrite renames tenant-prefixed identifiers, both as bare names and
// where they are embedded in free-form SQL such as index definitions and
// column default expressions.
package rewrite

import (
	"strings"
)

// Rewrite replaces a leading sourcePrefix of identifier with targetPrefix.
// Identifiers without the prefix (shared tables) are returned unchanged.
func Rewrite(identifier, sourcePrefix, targetPrefix string) string {
	if sourcePrefix == "" || !strings.HasPrefix(identifier, sourcePrefix) {
		return identifier
	}
	return targetPrefix + identifier[len(sourcePrefix):]
}

// Rewriter carries one source/target prefix pair.
type Rewriter struct {
	Source string // e.g. "fp_"
	Target string // e.g. "sb_"
}

func New(sourcePrefix, targetPrefix string) Rewriter {
	return Rewriter{Source: sourcePrefix, Target: targetPrefix}
}

// Name rewrites a single identifier.
func (r Rewriter) Name(identifier string) string {
	return Rewrite(identifier, r.Source, r.Target)
}

// Text rewrites every whole-identifier occurrence of one of names inside
// text. An occurrence counts only when it is not preceded or followed by an
// identifier character, so "fp_orders" inside "fp_orders_note" or
// "xfp_orders" is left alone. Quote characters act as boundaries, which
// covers 'fp_orders_id_seq'::regclass and "fp_orders".
func (r Rewriter) Text(text string, names ...string) string {
	if len(names) == 0 || text == "" {
		return text
	}

	known := make(map[string]string, len(names))
	for _, n := range names {
		if renamed := r.Name(n); renamed != n {
			known[n] = renamed
		}
	}
	if len(known) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if !isIdentByte(text[i]) {
			b.WriteByte(text[i])
			i++
			continue
		}
		j := i
		for j < len(text) && isIdentByte(text[j]) {
			j++
		}
		token := text[i:j]
		if renamed, ok := known[token]; ok {
			b.WriteString(renamed)
		} else {
			b.WriteString(token)
		}
		i = j
	}
	return b.String()
}

// isIdentByte matches the bytes of an unquoted PostgreSQL identifier.
// Multi-byte UTF-8 sequences are treated as identifier bytes too, which
// keeps them glued to their neighbours.
func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c >= 0x80
}
