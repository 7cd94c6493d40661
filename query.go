package mymcp

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/querysafe/mysql-mcp/internal/dberr"
	"github.com/querysafe/mysql-mcp/internal/sqlparse"
)

// Slow-query thresholds. Observability only, never a control-flow gate.
const (
	slowQueryThreshold     = time.Second
	elevatedQueryThreshold = 500 * time.Millisecond
)

// Query executes the full pipeline for one input: admission, connection
// acquisition from the caller's context pool, execution branched by
// statement category, and result shaping. All failures are converted to
// output.Error/output.ErrorType; callers never need to check a Go error.
func (p *MysqlMcp) Query(ctx context.Context, input QueryInput) *QueryOutput {
	start := time.Now()
	contextID := p.contextID(input.ContextID)

	assessment, err := p.interceptor.Admit(input.SQL)
	if err != nil {
		p.metrics.ObserveDenial(dberr.GetCode(err))
		return p.errorOutput(assessment.Statement.Operation, err)
	}
	stmt := assessment.Statement

	queryCtx := ctx
	if d := p.timeouts.For(stmt.Operation); d > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var results []map[string]interface{}
	err = p.pools.WithConn(queryCtx, contextID, func(ctx context.Context, conn *sql.Conn) error {
		var execErr error
		switch {
		case isMutation(stmt.Operation):
			results, execErr = p.execMutation(ctx, conn, input.SQL, input.Params)
		case stmt.Category == sqlparse.CategoryMetadata:
			results, execErr = p.execMetadata(ctx, conn, input.SQL, input.Params, stmt.Operation)
		default:
			results, execErr = p.execRead(ctx, conn, input)
		}
		return execErr
	})

	elapsed := time.Since(start)
	if err != nil {
		p.metrics.ObserveQuery(stmt.Operation, "error", elapsed)
		p.logger.Error().Err(err).
			Str("sql", truncateForLog(input.SQL, 200)).
			Dur("duration", elapsed).
			Msg("Query failed")
		return p.errorOutput(stmt.Operation, err)
	}

	p.metrics.ObserveQuery(stmt.Operation, "ok", elapsed)
	p.logExecution(input.SQL, stmt.Operation, len(results), elapsed)

	return &QueryOutput{
		Metadata: ResultMetadata{
			OperationType: stmt.Operation,
			ResultCount:   len(results),
			RiskLevel:     assessment.Level.String(),
		},
		Results: results,
	}
}

// ExecBatch runs statements as one atomic transaction on contextID's
// pool: all succeed or the whole batch rolls back. Each statement is
// still individually admitted, and a single denial fails the batch before
// anything executes.
func (p *MysqlMcp) ExecBatch(ctx context.Context, contextID string, stmts []BatchStatement) *QueryOutput {
	start := time.Now()
	if len(stmts) == 0 {
		return p.errorOutput("BATCH", dberr.New(dberr.CodeValidation, "batch contains no statements"))
	}

	for _, s := range stmts {
		if _, err := p.interceptor.Admit(s.SQL); err != nil {
			p.metrics.ObserveDenial(dberr.GetCode(err))
			return p.errorOutput("BATCH", err)
		}
	}

	var affected int64
	err := p.pools.WithConn(ctx, p.contextID(contextID), func(ctx context.Context, conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return dberr.ClassifyQuery(err)
		}
		for _, s := range stmts {
			res, err := tx.ExecContext(ctx, s.SQL, s.Params...)
			if err != nil {
				_ = tx.Rollback()
				return dberr.ClassifyQuery(err)
			}
			if n, err := res.RowsAffected(); err == nil {
				affected += n
			}
		}
		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()
			return dberr.ClassifyQuery(err)
		}
		return nil
	})

	elapsed := time.Since(start)
	if err != nil {
		p.metrics.ObserveQuery("BATCH", "error", elapsed)
		p.logger.Error().Err(err).Int("statements", len(stmts)).Dur("duration", elapsed).
			Msg("Batch failed, rolled back")
		return p.errorOutput("BATCH", err)
	}

	p.metrics.ObserveQuery("BATCH", "ok", elapsed)
	p.logger.Info().Int("statements", len(stmts)).Int64("affected_rows", affected).
		Dur("duration", elapsed).Msg("Batch committed")

	return &QueryOutput{
		Metadata: ResultMetadata{OperationType: "BATCH", ResultCount: 1},
		Results: []map[string]interface{}{{
			"affected_rows":   affected,
			"statement_count": len(stmts),
		}},
	}
}

func isMutation(operation string) bool {
	switch operation {
	case "INSERT", "UPDATE", "DELETE":
		return true
	}
	return false
}

// execMutation runs a data-changing statement inside a transaction and
// reports the affected-row count. On a driver error the transaction is
// rolled back before the error surfaces.
func (p *MysqlMcp) execMutation(ctx context.Context, conn *sql.Conn, sqlText string, params []interface{}) ([]map[string]interface{}, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, dberr.ClassifyQuery(err)
	}
	res, err := tx.ExecContext(ctx, sqlText, params...)
	if err != nil {
		_ = tx.Rollback()
		return nil, dberr.ClassifyQuery(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return nil, dberr.ClassifyQuery(err)
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return nil, dberr.ClassifyQuery(err)
	}
	return []map[string]interface{}{{"affected_rows": affected}}, nil
}

// execMetadata runs an introspection statement, fetches everything, and
// enriches well-known result shapes with normalized aliases. An empty
// result returns a marker record so callers can tell "ran but empty" from
// "not executed". Sensitive fields are masked unless the policy allows
// them through.
func (p *MysqlMcp) execMetadata(ctx context.Context, conn *sql.Conn, sqlText string, params []interface{}, operation string) ([]map[string]interface{}, error) {
	rows, err := conn.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, dberr.ClassifyQuery(err)
	}
	defer rows.Close()

	results, err := collectAll(rows)
	if err != nil {
		return nil, dberr.ClassifyQuery(err)
	}
	if len(results) == 0 {
		return []map[string]interface{}{{
			"metadata_operation": operation,
			"result_count":       0,
		}}, nil
	}

	enrichMetadataRows(results)
	if p.sanitizer != nil {
		results = p.sanitizer.MaskRows(results)
	}
	return results, nil
}

// enrichMetadataRows adds normalized aliases to the shapes SHOW and
// DESCRIBE produce, so callers need not know the server's column naming.
func enrichMetadataRows(rows []map[string]interface{}) {
	for _, row := range rows {
		for k, v := range row {
			switch {
			case strings.HasPrefix(k, "Tables_in_"), k == "Table":
				row["table_name"] = v
			case k == "Field":
				row["column_name"] = v
			case k == "Type":
				row["data_type"] = v
			}
		}
	}
}

// execRead runs a SELECT (or anything not otherwise branched). With
// streaming requested, rows are accumulated in bounded batches; a short
// batch signals exhaustion.
func (p *MysqlMcp) execRead(ctx context.Context, conn *sql.Conn, input QueryInput) ([]map[string]interface{}, error) {
	rows, err := conn.QueryContext(ctx, input.SQL, input.Params...)
	if err != nil {
		return nil, dberr.ClassifyQuery(err)
	}
	defer rows.Close()

	if !input.Stream {
		results, err := collectAll(rows)
		if err != nil {
			return nil, dberr.ClassifyQuery(err)
		}
		return results, nil
	}

	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = p.config.Query.DefaultBatchSize
	}
	var results []map[string]interface{}
	for {
		batch, err := collectBatch(rows, batchSize)
		if err != nil {
			return nil, dberr.ClassifyQuery(err)
		}
		results = append(results, batch...)
		if len(batch) < batchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, dberr.ClassifyQuery(err)
		}
	}
	if results == nil {
		results = []map[string]interface{}{}
	}
	return results, nil
}

// collectAll drains rows into normalized records.
func collectAll(rows *sql.Rows) ([]map[string]interface{}, error) {
	var results []map[string]interface{}
	for {
		batch, err := collectBatch(rows, 1024)
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
		if len(batch) < 1024 {
			break
		}
	}
	if results == nil {
		results = []map[string]interface{}{}
	}
	return results, nil
}

// collectBatch reads up to limit rows, normalizing every value to a plain
// Go type. No driver types cross this boundary.
func collectBatch(rows *sql.Rows, limit int) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	batch := make([]map[string]interface{}, 0, limit)
	values := make([]interface{}, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for len(batch) < limit && rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}

// normalizeValue converts a driver value into a JSON-friendly Go type.
// The MySQL driver hands most values over as []byte; numeric-looking
// bytes become numbers so callers are not stuck comparing strings.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []byte:
		s := string(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	default:
		return val
	}
}

// errorOutput converts any pipeline error into a QueryOutput carrying the
// taxonomy code. Raw driver errors never reach the caller.
func (p *MysqlMcp) errorOutput(operation string, err error) *QueryOutput {
	return &QueryOutput{
		Metadata:  ResultMetadata{OperationType: operation},
		Results:   []map[string]interface{}{},
		Error:     dberr.GetMessage(err),
		ErrorType: dberr.GetCode(err),
	}
}

func (p *MysqlMcp) logExecution(sqlText, operation string, count int, elapsed time.Duration) {
	var evt *zerolog.Event
	switch {
	case elapsed >= slowQueryThreshold:
		p.metrics.ObserveSlowQuery()
		evt = p.logger.Warn().Str("note", "slow query")
	case elapsed >= elevatedQueryThreshold:
		evt = p.logger.Info()
	default:
		evt = p.logger.Debug()
	}
	evt.Str("sql", truncateForLog(sqlText, 200)).
		Str("operation", operation).
		Int("row_count", count).
		Dur("duration", elapsed).
		Msg("Query executed")
}

// truncateForLog truncates a string for log output to avoid oversized log
// entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
