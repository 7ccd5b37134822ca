package database

import (
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm/schema"
)

type tableCommenter interface {
	TableComment() string
}

// DescribeSchema renders the tables of models with their column types and
// comments, one table per paragraph.
func DescribeSchema(namer schema.Namer, models ...any) (string, error) {
	if namer == nil {
		namer = schema.NamingStrategy{}
	}
	cache := &sync.Map{}

	var sb strings.Builder
	for i, m := range models {
		s, err := schema.Parse(m, cache, namer)
		if err != nil {
			return "", fmt.Errorf("parse model %T: %w", m, err)
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Table ")
		sb.WriteString(s.Table)
		if c, ok := m.(tableCommenter); ok {
			sb.WriteString(": ")
			sb.WriteString(c.TableComment())
		}
		sb.WriteString("\n")
		for _, f := range s.Fields {
			if f.DBName == "" {
				continue
			}
			sb.WriteString("  - ")
			sb.WriteString(f.DBName)
			sb.WriteString(" (")
			sb.WriteString(columnType(f))
			if f.PrimaryKey {
				sb.WriteString(", primary key")
			}
			sb.WriteString(")")
			if f.Comment != "" {
				sb.WriteString(": ")
				sb.WriteString(f.Comment)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func columnType(f *schema.Field) string {
	if t, ok := f.TagSettings["TYPE"]; ok && t != "" {
		return strings.ToLower(t)
	}
	switch f.DataType {
	case schema.Int, schema.Uint:
		return "integer"
	case schema.Float:
		return "numeric"
	case schema.Time:
		return "timestamp"
	case schema.Bool:
		return "boolean"
	default:
		return "text"
	}
}
