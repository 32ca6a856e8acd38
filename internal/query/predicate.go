// Package query describes composable row predicates shared by the storage
// backends. A predicate renders to parameterised Postgres SQL or evaluates
// in-process against a record.
package query

import (
	"fmt"
	"regexp"
)

// Predicate is a boolean expression over a row's columns.
type Predicate interface {
	predicate()
}

// Eq matches rows where Column equals Value.
type Eq struct {
	Column string
	Value  any
}

// IsNull matches rows where Column is NULL.
type IsNull struct {
	Column string
}

// In matches rows where Column is one of Values. An empty In matches nothing.
type In struct {
	Column string
	Values []any
}

// Op is a range comparison operator.
type Op string

// Supported range operators.
const (
	OpLT  Op = "<"
	OpLTE Op = "<="
	OpGT  Op = ">"
	OpGTE Op = ">="
)

// Cmp matches rows where Column compares to Value using Op.
type Cmp struct {
	Column string
	Op     Op
	Value  any
}

// And is the conjunction of its members. An empty And places no restriction.
type And []Predicate

// Or is the disjunction of its members. An empty Or matches nothing.
type Or []Predicate

func (Eq) predicate()     {}
func (IsNull) predicate() {}
func (In) predicate()     {}
func (Cmp) predicate()    {}
func (And) predicate()    {}
func (Or) predicate()     {}

// All combines predicates with logical AND. Nil members are dropped and nested
// conjunctions flattened. It returns nil when nothing restricts the result.
func All(preds ...Predicate) Predicate {
	var out And
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
			continue
		case And:
			switch flat := All(v...).(type) {
			case nil:
			case And:
				out = append(out, flat...)
			default:
				out = append(out, flat)
			}
		default:
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is a plain lower-case SQL identifier.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Columns returns every column referenced by p, in order of appearance.
func Columns(p Predicate) []string {
	var cols []string
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch v := p.(type) {
		case Eq:
			cols = append(cols, v.Column)
		case IsNull:
			cols = append(cols, v.Column)
		case In:
			cols = append(cols, v.Column)
		case Cmp:
			cols = append(cols, v.Column)
		case And:
			for _, m := range v {
				walk(m)
			}
		case Or:
			for _, m := range v {
				walk(m)
			}
		}
	}
	walk(p)
	return cols
}

func validOp(op Op) error {
	switch op {
	case OpLT, OpLTE, OpGT, OpGTE:
		return nil
	}
	return fmt.Errorf("query: unsupported operator %q", op)
}
