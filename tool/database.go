package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/hupe1980/analystmesh/core"
)

// DatabaseToolName is the name agents use to reach the analytics database.
const DatabaseToolName = "search_database"

// Querier executes a statement and returns its result set. database.Manager
// implements it.
type Querier interface {
	Query(ctx context.Context, statement string) (core.Table, error)
}

// DatabaseToolOptions configures NewDatabaseTool.
type DatabaseToolOptions struct {
	// MaxRows truncates large result sets. Zero disables truncation.
	MaxRows int
	// ReadOnly accepts a single SELECT or WITH statement without data
	// modifying keywords.
	ReadOnly bool
}

type databaseArgs struct {
	Statement string `json:"statement" description:"SQL statement to execute against the analytics database"`
}

// NewDatabaseTool builds the search_database tool on top of q. The statement
// is forwarded unchanged; the tool never rewrites SQL.
func NewDatabaseTool(q Querier, optFns ...func(o *DatabaseToolOptions)) *FunctionTool {
	opts := DatabaseToolOptions{MaxRows: 500, ReadOnly: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewFunctionToolFromStruct(
		DatabaseToolName,
		"Run a SQL query against the coffee-shop analytics database and return the result rows.",
		databaseArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (core.Table, error) {
			statement := strings.TrimSpace(args["statement"].(string))
			if statement == "" {
				return core.Table{}, validationError(DatabaseToolName, fmt.Errorf("statement is empty"))
			}
			if opts.ReadOnly {
				if err := checkReadOnly(statement); err != nil {
					return core.Table{}, validationError(DatabaseToolName, err)
				}
			}

			tbl, err := q.Query(toolCtx.Context(), statement)
			if err != nil {
				return core.Table{}, err
			}
			if opts.MaxRows > 0 && tbl.Len() > opts.MaxRows {
				toolCtx.LogWarn("tool.result.truncated", "rows", tbl.Len(), "max_rows", opts.MaxRows)
				tbl = tbl.Head(opts.MaxRows)
			}
			return tbl, nil
		},
	)
}

var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true, "RENAME": true,
	"GRANT": true, "REVOKE": true, "COPY": true, "CALL": true, "EXECUTE": true,
	"ATTACH": true, "DETACH": true, "PRAGMA": true, "VACUUM": true, "REINDEX": true,
}

// checkReadOnly accepts exactly one SELECT or WITH statement. Literals,
// quoted identifiers and comments are ignored.
func checkReadOnly(statement string) error {
	code := stripSQL(statement)

	n := 0
	for _, part := range strings.Split(code, ";") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	if n > 1 {
		return errors.New("only a single statement is allowed")
	}

	words := strings.FieldsFunc(strings.ToUpper(code), func(r rune) bool {
		return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 || (words[0] != "SELECT" && words[0] != "WITH") {
		return errors.New("only SELECT statements are allowed")
	}
	for _, w := range words {
		if writeKeywords[w] {
			return fmt.Errorf("%s is not allowed in a read-only statement", w)
		}
	}
	return nil
}

// stripSQL blanks out string literals, quoted identifiers and comments.
func stripSQL(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(s) {
				if s[j] == c {
					if j+1 < len(s) && s[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			b.WriteString(" _ ")
			i = j
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				i = len(s)
			} else {
				i += end
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
