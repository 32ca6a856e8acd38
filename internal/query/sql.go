package query

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Compile renders p as a Postgres boolean expression. Placeholders start at
// argOffset+1 so the fragment can be appended to statements that already carry
// arguments. A nil predicate renders as TRUE.
func Compile(p Predicate, argOffset int) (string, []any, error) {
	c := compiler{pos: argOffset}
	sql, err := c.compile(p)
	if err != nil {
		return "", nil, err
	}
	return sql, c.args, nil
}

// QuoteIdent validates and quotes a column name.
func QuoteIdent(name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", fmt.Errorf("query: invalid identifier %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

type compiler struct {
	pos  int
	args []any
}

func (c *compiler) bind(v any) string {
	c.pos++
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", c.pos)
}

func (c *compiler) compile(p Predicate) (string, error) {
	switch v := p.(type) {
	case nil:
		return "TRUE", nil
	case Eq:
		col, err := QuoteIdent(v.Column)
		if err != nil {
			return "", err
		}
		if v.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + c.bind(v.Value), nil
	case IsNull:
		col, err := QuoteIdent(v.Column)
		if err != nil {
			return "", err
		}
		return col + " IS NULL", nil
	case In:
		col, err := QuoteIdent(v.Column)
		if err != nil {
			return "", err
		}
		if len(v.Values) == 0 {
			return "FALSE", nil
		}
		holders := make([]string, len(v.Values))
		for i, val := range v.Values {
			holders[i] = c.bind(val)
		}
		return col + " IN (" + strings.Join(holders, ", ") + ")", nil
	case Cmp:
		col, err := QuoteIdent(v.Column)
		if err != nil {
			return "", err
		}
		if err := validOp(v.Op); err != nil {
			return "", err
		}
		return col + " " + string(v.Op) + " " + c.bind(v.Value), nil
	case And:
		if len(v) == 0 {
			return "TRUE", nil
		}
		parts := make([]string, 0, len(v))
		for _, m := range v {
			frag, err := c.compile(m)
			if err != nil {
				return "", err
			}
			parts = append(parts, frag)
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case Or:
		if len(v) == 0 {
			return "FALSE", nil
		}
		parts := make([]string, 0, len(v))
		for _, m := range v {
			frag, err := c.compile(m)
			if err != nil {
				return "", err
			}
			parts = append(parts, frag)
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	default:
		return "", fmt.Errorf("query: unsupported predicate %T", p)
	}
}
