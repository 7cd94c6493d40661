// Package sqlparse classifies SQL text: operation, category, referenced
// tables, clause presence, and multi-statement structure. Classification is
// best-effort and never fails: input the parser cannot handle degrades to
// a keyword heuristic instead of an error, so the risk and admission layers
// always have something to decide on.
package sqlparse

import (
	"sort"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Category buckets an operation by what it touches.
type Category string

const (
	CategoryDDL      Category = "DDL"
	CategoryDML      Category = "DML"
	CategoryMetadata Category = "METADATA"
	CategoryUnknown  Category = "UNKNOWN"
)

// DDLOperations are structure-altering statement keywords.
var DDLOperations = map[string]bool{
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true, "RENAME": true,
}

// DMLOperations are data-altering (and reading) statement keywords.
var DMLOperations = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
}

// MetadataOperations are introspection statement keywords.
var MetadataOperations = map[string]bool{
	"SHOW": true, "DESC": true, "DESCRIBE": true, "EXPLAIN": true, "HELP": true,
	"ANALYZE": true, "CHECK": true, "CHECKSUM": true, "OPTIMIZE": true,
}

// Supported reports whether op belongs to any of the three operation sets.
func Supported(op string) bool {
	return DDLOperations[op] || DMLOperations[op] || MetadataOperations[op]
}

// CategoryOf returns the category for an operation keyword. Category is a
// pure function of the operation.
func CategoryOf(op string) Category {
	switch {
	case DDLOperations[op]:
		return CategoryDDL
	case DMLOperations[op]:
		return CategoryDML
	case MetadataOperations[op]:
		return CategoryMetadata
	default:
		return CategoryUnknown
	}
}

// Statement is the immutable result of classifying one SQL input, which may
// contain several statements. For multi-statement input, Tables is the union
// across statements, HasWhere/HasLimit are true if any statement has the
// clause, and Operation/Category are the dominant ones by risk priority.
type Statement struct {
	Raw            string
	Normalized     string
	Operation      string
	Category       Category
	Tables         []string
	HasWhere       bool
	HasLimit       bool
	MultiStatement bool
	StatementCount int
	Valid          bool
}

// Classify parses sql and returns its classification. It never fails:
// empty input yields Valid=false, and statements the parser rejects fall
// back to a keyword heuristic.
func Classify(sql string) Statement {
	result := Statement{
		Raw:        sql,
		Normalized: normalize(sql),
		Category:   CategoryUnknown,
	}
	if strings.TrimSpace(sql) == "" {
		return result
	}

	pieces := splitStatements(sql)
	if len(pieces) == 0 {
		return result
	}
	result.StatementCount = len(pieces)
	result.MultiStatement = len(pieces) > 1

	infos := make([]pieceInfo, 0, len(pieces))
	tables := map[string]bool{}
	for _, piece := range pieces {
		info := analyzePiece(piece)
		infos = append(infos, info)
		for _, t := range info.tables {
			tables[t] = true
		}
		result.HasWhere = result.HasWhere || info.hasWhere
		result.HasLimit = result.HasLimit || info.hasLimit
	}

	result.Tables = sortedKeys(tables)
	result.Operation = dominantOperation(infos)
	result.Category = CategoryOf(result.Operation)
	result.Valid = result.Operation != ""
	if !result.Valid {
		result.Operation = ""
		result.Category = CategoryUnknown
	}
	return result
}

// pieceInfo is the per-statement classification inside a batch.
type pieceInfo struct {
	operation string
	tables    []string
	hasWhere  bool
	hasLimit  bool
}

// splitStatements splits a batch into individual statements. The parser's
// splitter understands semicolons inside string literals; when even that
// fails, a plain semicolon split keeps the statement count usable.
func splitStatements(sql string) []string {
	pieces, err := sqlparser.SplitStatementToPieces(sql)
	if err != nil {
		pieces = strings.Split(sql, ";")
	}
	out := pieces[:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func analyzePiece(piece string) pieceInfo {
	stmt, err := sqlparser.Parse(piece)
	if err != nil {
		return fallbackParse(piece)
	}

	switch s := stmt.(type) {
	case *sqlparser.Select:
		return pieceInfo{
			operation: "SELECT",
			tables:    collectTables(s),
			hasWhere:  selectHasWhere(s),
			hasLimit:  selectHasLimit(s),
		}
	case *sqlparser.Union:
		return pieceInfo{
			operation: "SELECT",
			tables:    collectTables(s),
			hasWhere:  selectHasWhere(s),
			hasLimit:  selectHasLimit(s),
		}
	case *sqlparser.ParenSelect:
		return analyzeSelectStatement(s.Select)
	case *sqlparser.Insert:
		return pieceInfo{
			operation: strings.ToUpper(s.Action),
			tables:    []string{s.Table.Name.String()},
		}
	case *sqlparser.Update:
		return pieceInfo{
			operation: "UPDATE",
			tables:    collectTables(s.TableExprs),
			hasWhere:  s.Where != nil,
			hasLimit:  s.Limit != nil,
		}
	case *sqlparser.Delete:
		return pieceInfo{
			operation: "DELETE",
			tables:    collectTables(s.TableExprs),
			hasWhere:  s.Where != nil,
			hasLimit:  s.Limit != nil,
		}
	case *sqlparser.DDL:
		info := pieceInfo{operation: strings.ToUpper(s.Action)}
		if name := s.Table.Name.String(); name != "" {
			info.tables = append(info.tables, name)
		}
		if s.Action == sqlparser.RenameStr {
			if name := s.NewName.Name.String(); name != "" {
				info.tables = append(info.tables, name)
			}
		}
		return info
	case *sqlparser.DBDDL:
		return pieceInfo{operation: strings.ToUpper(s.Action)}
	case *sqlparser.Show:
		return pieceInfo{operation: "SHOW"}
	case *sqlparser.OtherRead, *sqlparser.OtherAdmin:
		// DESCRIBE/EXPLAIN/REPAIR parse to opaque nodes; the leading
		// keyword carries the operation.
		return pieceInfo{operation: leadingKeyword(piece)}
	default:
		return pieceInfo{operation: leadingKeyword(piece)}
	}
}

func analyzeSelectStatement(stmt sqlparser.SelectStatement) pieceInfo {
	return pieceInfo{
		operation: "SELECT",
		tables:    collectTables(stmt),
		hasWhere:  selectHasWhere(stmt),
		hasLimit:  selectHasLimit(stmt),
	}
}

// collectTables walks node and gathers every table referenced in a FROM or
// JOIN position, descending into parenthesized subqueries. Column
// qualifiers and aliases are not table references and are skipped.
func collectTables(node sqlparser.SQLNode) []string {
	seen := map[string]bool{}
	_ = sqlparser.Walk(func(n sqlparser.SQLNode) (bool, error) {
		if aliased, ok := n.(*sqlparser.AliasedTableExpr); ok {
			if name, ok := aliased.Expr.(sqlparser.TableName); ok {
				if t := name.Name.String(); t != "" {
					seen[t] = true
				}
			}
		}
		return true, nil
	}, node)
	return sortedKeys(seen)
}

func selectHasWhere(stmt sqlparser.SelectStatement) bool {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return s.Where != nil
	case *sqlparser.Union:
		return selectHasWhere(s.Left) || selectHasWhere(s.Right)
	case *sqlparser.ParenSelect:
		return selectHasWhere(s.Select)
	}
	return false
}

func selectHasLimit(stmt sqlparser.SelectStatement) bool {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return s.Limit != nil
	case *sqlparser.Union:
		if s.Limit != nil {
			return true
		}
		return selectHasLimit(s.Left) || selectHasLimit(s.Right)
	case *sqlparser.ParenSelect:
		return selectHasLimit(s.Select)
	}
	return false
}

// fallbackParse classifies a statement the parser rejected. The leading
// keyword becomes the operation, identifiers after FROM/JOIN/UPDATE/INTO/
// TABLE become naive table guesses, and WHERE/LIMIT are substring checks.
func fallbackParse(piece string) pieceInfo {
	upper := strings.ToUpper(strings.TrimSpace(piece))
	parts := strings.Fields(upper)
	info := pieceInfo{}
	if len(parts) == 0 {
		return info
	}
	info.operation = strings.Trim(parts[0], ";")

	for i, word := range parts {
		switch word {
		case "FROM", "JOIN", "UPDATE", "INTO", "TABLE":
			if i+1 < len(parts) {
				table := strings.Trim(parts[i+1], "`;,()")
				if table != "" && table != "SELECT" && table != "WHERE" && table != "SET" {
					info.tables = append(info.tables, table)
				}
			}
		}
	}
	info.hasWhere = strings.Contains(upper, "WHERE")
	info.hasLimit = strings.Contains(upper, "LIMIT")
	return info
}

// dominantOperation resolves the batch's operation by risk priority:
// category DDL > DML > METADATA, DROP/TRUNCATE > ALTER > CREATE within
// DDL, DELETE > UPDATE > INSERT > SELECT within DML.
func dominantOperation(infos []pieceInfo) string {
	ops := map[string]bool{}
	var firstByCategory = map[Category]string{}
	for _, info := range infos {
		if info.operation == "" {
			continue
		}
		ops[info.operation] = true
		cat := CategoryOf(info.operation)
		if _, ok := firstByCategory[cat]; !ok {
			firstByCategory[cat] = info.operation
		}
	}
	if len(ops) == 0 {
		return ""
	}

	if first, ok := firstByCategory[CategoryDDL]; ok {
		for _, op := range []string{"DROP", "TRUNCATE", "ALTER", "CREATE"} {
			if ops[op] {
				return op
			}
		}
		return first
	}
	if first, ok := firstByCategory[CategoryDML]; ok {
		for _, op := range []string{"DELETE", "UPDATE", "INSERT", "SELECT"} {
			if ops[op] {
				return op
			}
		}
		return first
	}
	if first, ok := firstByCategory[CategoryMetadata]; ok {
		return first
	}
	return firstByCategory[CategoryUnknown]
}

func leadingKeyword(piece string) string {
	parts := strings.Fields(strings.ToUpper(strings.TrimSpace(piece)))
	if len(parts) == 0 {
		return ""
	}
	return strings.Trim(parts[0], ";")
}

func normalize(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
