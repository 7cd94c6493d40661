package mymcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/querysafe/mysql-mcp/internal/dberr"
	"github.com/querysafe/mysql-mcp/internal/validate"
)

// Metadata tools are thin call-sites over Query: they validate their
// inputs, build the introspection statement, and reuse the full pipeline
// so admission, pooling, and sanitization apply uniformly. Identifiers
// are restricted to [A-Za-z0-9_] by validation, so inlining them is safe.

// systemSchemas are excluded from ShowDatabases when the caller asks for
// user databases only.
var systemSchemas = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// ShowDatabases lists databases, optionally filtered by a LIKE pattern,
// capped at limit, with system schemas excluded on request.
func (p *MysqlMcp) ShowDatabases(ctx context.Context, input ShowDatabasesInput) *QueryOutput {
	if err := validate.LikePattern(input.Pattern, "pattern"); err != nil {
		return p.errorOutput("SHOW", err)
	}
	if input.Limit != 0 {
		if err := validate.IntRange(input.Limit, 1, 10000, "limit"); err != nil {
			return p.errorOutput("SHOW", err)
		}
	}

	sqlText := "SHOW DATABASES"
	if input.Pattern != "" {
		sqlText += fmt.Sprintf(" LIKE '%s'", input.Pattern)
	}
	out := p.Query(ctx, QueryInput{SQL: sqlText, ContextID: input.ContextID})
	if out.Error != "" {
		return out
	}

	if input.ExcludeSystem {
		filtered := out.Results[:0]
		for _, row := range out.Results {
			if name, ok := row["Database"].(string); ok && systemSchemas[name] {
				continue
			}
			filtered = append(filtered, row)
		}
		out.Results = filtered
	}
	if input.Limit > 0 && len(out.Results) > input.Limit {
		out.Results = out.Results[:input.Limit]
	}
	out.Metadata.ResultCount = len(out.Results)
	return out
}

// ShowTables lists tables in a database (current database when empty),
// optionally filtered by a LIKE pattern, with views excluded on request.
func (p *MysqlMcp) ShowTables(ctx context.Context, input ShowTablesInput) *QueryOutput {
	if input.Database != "" {
		if err := validate.Identifier(input.Database, "database"); err != nil {
			return p.errorOutput("SHOW", err)
		}
	}
	if err := validate.LikePattern(input.Pattern, "pattern"); err != nil {
		return p.errorOutput("SHOW", err)
	}

	sqlText := "SHOW FULL TABLES"
	if input.Database != "" {
		sqlText += " FROM " + input.Database
	}
	if input.Pattern != "" {
		sqlText += fmt.Sprintf(" LIKE '%s'", input.Pattern)
	}
	out := p.Query(ctx, QueryInput{SQL: sqlText, ContextID: input.ContextID})
	if out.Error != "" {
		return out
	}

	if input.ExcludeViews {
		filtered := out.Results[:0]
		for _, row := range out.Results {
			if kind, ok := row["Table_type"].(string); ok && kind != "BASE TABLE" {
				continue
			}
			filtered = append(filtered, row)
		}
		out.Results = filtered
		out.Metadata.ResultCount = len(out.Results)
	}
	return out
}

// ShowColumns returns full column metadata for one table.
func (p *MysqlMcp) ShowColumns(ctx context.Context, input TableInput) *QueryOutput {
	target, err := p.qualifiedTable(input)
	if err != nil {
		return p.errorOutput("SHOW", err)
	}
	return p.Query(ctx, QueryInput{
		SQL:       "SHOW FULL COLUMNS FROM " + target,
		ContextID: input.ContextID,
	})
}

// DescribeTable returns the DESCRIBE output for one table.
func (p *MysqlMcp) DescribeTable(ctx context.Context, input TableInput) *QueryOutput {
	target, err := p.qualifiedTable(input)
	if err != nil {
		return p.errorOutput("DESCRIBE", err)
	}
	return p.Query(ctx, QueryInput{
		SQL:       "DESCRIBE " + target,
		ContextID: input.ContextID,
	})
}

// ShowCreateTable returns the table's DDL.
func (p *MysqlMcp) ShowCreateTable(ctx context.Context, input TableInput) *QueryOutput {
	target, err := p.qualifiedTable(input)
	if err != nil {
		return p.errorOutput("SHOW", err)
	}
	return p.Query(ctx, QueryInput{
		SQL:       "SHOW CREATE TABLE " + target,
		ContextID: input.ContextID,
	})
}

// ShowIndexes returns index metadata for one table.
func (p *MysqlMcp) ShowIndexes(ctx context.Context, input TableInput) *QueryOutput {
	target, err := p.qualifiedTable(input)
	if err != nil {
		return p.errorOutput("SHOW", err)
	}
	return p.Query(ctx, QueryInput{
		SQL:       "SHOW INDEX FROM " + target,
		ContextID: input.ContextID,
	})
}

// ShowTableStatus returns storage-level status for one table.
func (p *MysqlMcp) ShowTableStatus(ctx context.Context, input TableInput) *QueryOutput {
	if err := validate.Identifier(input.Table, "table"); err != nil {
		return p.errorOutput("SHOW", err)
	}
	sqlText := fmt.Sprintf("SHOW TABLE STATUS LIKE '%s'", input.Table)
	if input.Database != "" {
		if err := validate.Identifier(input.Database, "database"); err != nil {
			return p.errorOutput("SHOW", err)
		}
		sqlText = fmt.Sprintf("SHOW TABLE STATUS FROM %s LIKE '%s'", input.Database, input.Table)
	}
	return p.Query(ctx, QueryInput{SQL: sqlText, ContextID: input.ContextID})
}

// ShowForeignKeys lists foreign keys referencing out of one table, from
// information_schema. The schema defaults to the current database.
func (p *MysqlMcp) ShowForeignKeys(ctx context.Context, input TableInput) *QueryOutput {
	if err := validate.Identifier(input.Table, "table"); err != nil {
		return p.errorOutput("SELECT", err)
	}
	schema := "DATABASE()"
	params := []interface{}{input.Table}
	if input.Database != "" {
		if err := validate.Identifier(input.Database, "database"); err != nil {
			return p.errorOutput("SELECT", err)
		}
		schema = "?"
		params = append(params, input.Database)
	}
	sqlText := fmt.Sprintf(`SELECT
    CONSTRAINT_NAME AS constraint_name,
    COLUMN_NAME AS column_name,
    REFERENCED_TABLE_NAME AS referenced_table,
    REFERENCED_COLUMN_NAME AS referenced_column
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_NAME = ?
  AND TABLE_SCHEMA = %s
  AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`, schema)
	return p.Query(ctx, QueryInput{SQL: sqlText, Params: params, ContextID: input.ContextID})
}

// ShowVariables returns server variables, session scope by default.
func (p *MysqlMcp) ShowVariables(ctx context.Context, input ShowVariablesInput) *QueryOutput {
	return p.showScoped(ctx, "VARIABLES", input)
}

// ShowStatus returns server status counters, session scope by default.
func (p *MysqlMcp) ShowStatus(ctx context.Context, input ShowVariablesInput) *QueryOutput {
	return p.showScoped(ctx, "STATUS", input)
}

func (p *MysqlMcp) showScoped(ctx context.Context, what string, input ShowVariablesInput) *QueryOutput {
	if err := validate.LikePattern(input.Pattern, "pattern"); err != nil {
		return p.errorOutput("SHOW", err)
	}
	scope := "SESSION"
	if input.Global {
		scope = "GLOBAL"
	}
	sqlText := fmt.Sprintf("SHOW %s %s", scope, what)
	if input.Pattern != "" {
		sqlText += fmt.Sprintf(" LIKE '%s'", input.Pattern)
	}
	return p.Query(ctx, QueryInput{SQL: sqlText, ContextID: input.ContextID})
}

// PaginateResults wraps an arbitrary read statement with LIMIT/OFFSET
// pagination. The wrapped statement goes through the same admission as
// any other.
func (p *MysqlMcp) PaginateResults(ctx context.Context, input PaginateInput) *QueryOutput {
	if err := validate.IntRange(input.Page, 1, 1000000, "page"); err != nil {
		return p.errorOutput("SELECT", err)
	}
	if err := validate.IntRange(input.PageSize, 1, 10000, "page_size"); err != nil {
		return p.errorOutput("SELECT", err)
	}
	inner := strings.TrimRight(strings.TrimSpace(input.SQL), ";")
	if inner == "" {
		return p.errorOutput("SELECT", dberr.New(dberr.CodeValidation, "sql must not be empty"))
	}
	sqlText := fmt.Sprintf(
		"SELECT * FROM (%s) AS paginated_results LIMIT %d OFFSET %d",
		inner, input.PageSize, (input.Page-1)*input.PageSize)
	return p.Query(ctx, QueryInput{SQL: sqlText, ContextID: input.ContextID})
}

// CurrentDatabase reports the connection's current default database.
func (p *MysqlMcp) CurrentDatabase(ctx context.Context, contextID string) *QueryOutput {
	return p.Query(ctx, QueryInput{
		SQL:       "SELECT DATABASE() AS current_database",
		ContextID: contextID,
	})
}

// qualifiedTable validates and joins the table (and optional database)
// into the identifier used in SHOW and DESCRIBE statements.
func (p *MysqlMcp) qualifiedTable(input TableInput) (string, error) {
	if err := validate.Identifier(input.Table, "table"); err != nil {
		return "", err
	}
	if input.Database == "" {
		return input.Table, nil
	}
	if err := validate.Identifier(input.Database, "database"); err != nil {
		return "", err
	}
	return input.Database + "." + input.Table, nil
}
