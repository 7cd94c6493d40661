package mymcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers every tool on the given MCP server through
// an explicit registration table. Each handler resolves its execution
// context from the client session, so concurrent sessions never share a
// connection pool.
func RegisterMCPTools(mcpServer *server.MCPServer, eng *MysqlMcp) {
	for _, entry := range eng.toolTable() {
		mcpServer.AddTool(entry.tool, eng.loggedToolHandler(entry.tool.Name, entry.handler))
	}
}

type toolEntry struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

// toolTable enumerates every tool and its handler. Built at compile time
// rather than discovered, so the tool surface is visible in one place.
func (p *MysqlMcp) toolTable() []toolEntry {
	return []toolEntry{
		{
			tool: mcp.NewTool("mysql_query",
				mcp.WithDescription("Execute a SQL statement against the MySQL database, subject to the security policy. Returns results as JSON."),
				mcp.WithString("sql",
					mcp.Required(),
					mcp.Description("The SQL statement to execute"),
				),
				mcp.WithArray("params",
					mcp.Description("Positional arguments bound to ? placeholders"),
				),
				mcp.WithBoolean("stream",
					mcp.Description("Fetch results in bounded batches to cap memory"),
				),
				mcp.WithNumber("batch_size",
					mcp.Description("Rows per batch when streaming"),
				),
			),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				sql, err := req.RequireString("sql")
				if err != nil {
					return mcp.NewToolResultError("sql parameter is required"), nil
				}
				params, _ := req.GetArguments()["params"].([]interface{})
				return toolResult(p.Query(ctx, QueryInput{
					SQL:       sql,
					Params:    params,
					ContextID: sessionContextID(ctx),
					Stream:    req.GetBool("stream", false),
					BatchSize: req.GetInt("batch_size", 0),
				}))
			},
		},
		{
			tool: mcp.NewTool("mysql_exec_batch",
				mcp.WithDescription("Execute a list of statements in one atomic transaction: all succeed or everything rolls back."),
				mcp.WithArray("statements",
					mcp.Required(),
					mcp.Description("Statements to execute, each {sql, params}"),
				),
			),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				var args struct {
					Statements []BatchStatement `json:"statements"`
				}
				if err := req.BindArguments(&args); err != nil {
					return mcp.NewToolResultError("statements parameter is malformed"), nil
				}
				return toolResult(p.ExecBatch(ctx, sessionContextID(ctx), args.Statements))
			},
		},
		{
			tool: mcp.NewTool("mysql_show_databases",
				mcp.WithDescription("List databases, optionally filtered by a LIKE pattern."),
				mcp.WithString("pattern", mcp.Description("LIKE pattern, e.g. app_%")),
				mcp.WithNumber("limit", mcp.Description("Maximum databases to return")),
				mcp.WithBoolean("exclude_system", mcp.Description("Hide information_schema, mysql, performance_schema, and sys")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return toolResult(p.ShowDatabases(ctx, ShowDatabasesInput{
					Pattern:       req.GetString("pattern", ""),
					Limit:         req.GetInt("limit", 0),
					ExcludeSystem: req.GetBool("exclude_system", false),
					ContextID:     sessionContextID(ctx),
				}))
			},
		},
		{
			tool: mcp.NewTool("mysql_show_tables",
				mcp.WithDescription("List tables in a database (the current database by default)."),
				mcp.WithString("database", mcp.Description("Database name, defaults to the current database")),
				mcp.WithString("pattern", mcp.Description("LIKE pattern for table names")),
				mcp.WithBoolean("exclude_views", mcp.Description("Return base tables only")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return toolResult(p.ShowTables(ctx, ShowTablesInput{
					Database:     req.GetString("database", ""),
					Pattern:      req.GetString("pattern", ""),
					ExcludeViews: req.GetBool("exclude_views", false),
					ContextID:    sessionContextID(ctx),
				}))
			},
		},
		{
			tool: mcp.NewTool("mysql_show_columns",
				mcp.WithDescription("Show full column metadata for a table."),
				mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
				mcp.WithString("database", mcp.Description("Database name, defaults to the current database")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: p.tableToolHandler(p.ShowColumns),
		},
		{
			tool: mcp.NewTool("mysql_describe_table",
				mcp.WithDescription("Describe a table's columns (DESCRIBE output)."),
				mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
				mcp.WithString("database", mcp.Description("Database name, defaults to the current database")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: p.tableToolHandler(p.DescribeTable),
		},
		{
			tool: mcp.NewTool("mysql_show_create_table",
				mcp.WithDescription("Show the CREATE TABLE statement for a table."),
				mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
				mcp.WithString("database", mcp.Description("Database name, defaults to the current database")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: p.tableToolHandler(p.ShowCreateTable),
		},
		{
			tool: mcp.NewTool("mysql_show_indexes",
				mcp.WithDescription("Show index metadata for a table."),
				mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
				mcp.WithString("database", mcp.Description("Database name, defaults to the current database")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: p.tableToolHandler(p.ShowIndexes),
		},
		{
			tool: mcp.NewTool("mysql_show_table_status",
				mcp.WithDescription("Show storage-level status for a table (engine, row count, sizes)."),
				mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
				mcp.WithString("database", mcp.Description("Database name, defaults to the current database")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: p.tableToolHandler(p.ShowTableStatus),
		},
		{
			tool: mcp.NewTool("mysql_show_foreign_keys",
				mcp.WithDescription("List foreign keys defined on a table."),
				mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
				mcp.WithString("database", mcp.Description("Database name, defaults to the current database")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: p.tableToolHandler(p.ShowForeignKeys),
		},
		{
			tool: mcp.NewTool("mysql_show_variables",
				mcp.WithDescription("Show server variables, optionally filtered by a LIKE pattern."),
				mcp.WithString("pattern", mcp.Description("LIKE pattern, e.g. max_%")),
				mcp.WithBoolean("global", mcp.Description("Global scope instead of session")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return toolResult(p.ShowVariables(ctx, ShowVariablesInput{
					Pattern:   req.GetString("pattern", ""),
					Global:    req.GetBool("global", false),
					ContextID: sessionContextID(ctx),
				}))
			},
		},
		{
			tool: mcp.NewTool("mysql_show_status",
				mcp.WithDescription("Show server status counters, optionally filtered by a LIKE pattern."),
				mcp.WithString("pattern", mcp.Description("LIKE pattern, e.g. Threads_%")),
				mcp.WithBoolean("global", mcp.Description("Global scope instead of session")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return toolResult(p.ShowStatus(ctx, ShowVariablesInput{
					Pattern:   req.GetString("pattern", ""),
					Global:    req.GetBool("global", false),
					ContextID: sessionContextID(ctx),
				}))
			},
		},
		{
			tool: mcp.NewTool("mysql_paginate_results",
				mcp.WithDescription("Run a read statement with LIMIT/OFFSET pagination applied."),
				mcp.WithString("sql", mcp.Required(), mcp.Description("The statement to paginate")),
				mcp.WithNumber("page", mcp.Required(), mcp.Description("Page number, starting at 1")),
				mcp.WithNumber("page_size", mcp.Required(), mcp.Description("Rows per page")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				sql, err := req.RequireString("sql")
				if err != nil {
					return mcp.NewToolResultError("sql parameter is required"), nil
				}
				return toolResult(p.PaginateResults(ctx, PaginateInput{
					SQL:       sql,
					Page:      req.GetInt("page", 1),
					PageSize:  req.GetInt("page_size", 100),
					ContextID: sessionContextID(ctx),
				}))
			},
		},
		{
			tool: mcp.NewTool("mysql_current_database",
				mcp.WithDescription("Report the connection's current default database."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return toolResult(p.CurrentDatabase(ctx, sessionContextID(ctx)))
			},
		},
	}
}

// tableToolHandler adapts the table-shaped metadata methods into a tool
// handler, since they all take the same input.
func (p *MysqlMcp) tableToolHandler(fn func(context.Context, TableInput) *QueryOutput) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		return toolResult(fn(ctx, TableInput{
			Table:     table,
			Database:  req.GetString("database", ""),
			ContextID: sessionContextID(ctx),
		}))
	}
}

// toolResult serializes a QueryOutput. The envelope goes out either way;
// failures are flagged as tool errors so the caller's agent can react.
func toolResult(output *QueryOutput) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal result"), nil
	}
	if output.Error != "" {
		return mcp.NewToolResultError(string(jsonBytes)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// sessionContextID derives the execution context from the MCP client
// session. Transports without sessions fall back to the engine default.
func sessionContextID(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return ""
}

// loggedToolHandler wraps a tool handler to log request and response
// lengths.
func (p *MysqlMcp) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		p.logger.Info().
			Str("tool", tool).
			Str("context_id", p.contextID(sessionContextID(ctx))).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request
// arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a
// CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
