package tenant

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCode  = errors.New("invalid tenant code")
	ErrReservedCode = errors.New("tenant code is reserved for the source tenant")
)

// DefaultSuffix is appended to the lower-cased code to name a tenant database.
const DefaultSuffix = "_database"

// Descriptor identifies one tenant and its physical database.
type Descriptor struct {
	Code         string // upper case, e.g. "SB"
	DatabaseName string // e.g. "sb_database"
}

// Prefix is the identifier prefix of the tenant's tables, sequences and indexes.
func (d Descriptor) Prefix() string {
	return strings.ToLower(d.Code) + "_"
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s)", d.Code, d.DatabaseName)
}

// Naming derives database names from tenant codes and back.
type Naming struct {
	Suffix     string
	SourceCode string
}

func NewNaming(sourceCode, suffix string) Naming {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return Naming{Suffix: suffix, SourceCode: strings.ToUpper(strings.TrimSpace(sourceCode))}
}

// Describe normalises code and derives its database name.
func (n Naming) Describe(code string) (Descriptor, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return Descriptor{}, fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	for _, r := range c {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
	}
	return Descriptor{Code: c, DatabaseName: strings.ToLower(c) + n.Suffix}, nil
}

// Source describes the source tenant.
func (n Naming) Source() (Descriptor, error) {
	return n.Describe(n.SourceCode)
}

// IsSource reports whether d is the source tenant.
func (n Naming) IsSource(d Descriptor) bool {
	return d.Code == n.SourceCode
}

// FromDatabaseName recovers a descriptor from a physical database name.
// ok is false when the name does not follow the tenant naming convention.
func (n Naming) FromDatabaseName(dbName string) (d Descriptor, ok bool) {
	stem, found := strings.CutSuffix(dbName, n.Suffix)
	if !found || stem == "" {
		return Descriptor{}, false
	}
	d, err := n.Describe(stem)
	if err != nil || d.DatabaseName != dbName {
		return Descriptor{}, false
	}
	return d, true
}
