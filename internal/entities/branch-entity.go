package entities

import (
	"strings"
	"unicode"

	"branch-ledger/pkg/types"
)

type Branch struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Code string `json:"code" db:"code"`

	types.BaseEntity
}

// NormalizeBranchName folds case and drops all whitespace; two branches may not
// share a normalized name.
func NormalizeBranchName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
