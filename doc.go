// Package mymcp provides safe, policy-controlled MySQL access for AI
// agents through the Model Context Protocol (MCP).
//
// Every statement runs through the same pipeline: it is classified
// (operation, category, referenced tables, clause structure), scored
// against the configured security policy (environment type, allowed risk
// levels, blocked patterns), and only then executed on a connection
// pool owned by the calling session. Results come back as plain
// JSON-friendly records, with sensitive fields masked unless the policy
// allows them through. Failures are structured: a stable error code plus
// a corrective message, never a raw driver error.
//
// # Library Usage
//
//	eng, err := mymcp.New(mymcp.Config{
//		Connection: mymcp.ConnectionConfig{
//			Host:     "localhost",
//			User:     "app",
//			Password: os.Getenv("MYSQL_PASSWORD"),
//			Database: "app",
//		},
//		Security: mymcp.SecurityConfig{
//			EnvironmentType:   "production",
//			AllowedRiskLevels: "LOW",
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	// Use directly
//	out := eng.Query(ctx, mymcp.QueryInput{SQL: "SELECT * FROM users LIMIT 10"})
//
//	// Or register as MCP tools
//	mymcp.RegisterMCPTools(mcpServer, eng)
//
// # Execution contexts
//
// Each MCP session gets its own connection pool, created lazily on first
// use and reclaimed by a periodic sweep once the session disconnects.
// Library callers can name their own contexts through
// QueryInput.ContextID; the empty string selects a per-engine default.
//
// In production environments the policy defaults to locking execution
// down to LOW-risk statements (reads and introspection) until risk
// levels are configured explicitly.
package mymcp
