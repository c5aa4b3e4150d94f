package milvus

import (
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// quote renders s as a Milvus string literal.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// stringList renders values as a Milvus list literal.
func stringList(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quote(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// filterExpr renders a metadata filter as a boolean expression. An empty
// filter yields an expression matching every row, since query and delete
// calls require one.
func filterExpr(filter domain.Filter) string {
	var conds []string
	if len(filter.Tickers) > 0 {
		conds = append(conds, fieldTicker+" in "+stringList(filter.Tickers))
	}
	if filter.Period != "" {
		conds = append(conds, fieldPeriod+" == "+quote(filter.Period))
	}
	if len(conds) == 0 {
		return matchAll
	}
	return strings.Join(conds, " && ")
}

// documentExpr matches every chunk of one document.
func documentExpr(documentID string) string {
	return fieldDocumentID + " == " + quote(documentID)
}

// idsExpr matches chunks by primary key.
func idsExpr(ids []string) string {
	return fieldID + " in " + stringList(ids)
}

// matchAll is true for every row with a primary key.
var matchAll = fieldID + ` != ""`
