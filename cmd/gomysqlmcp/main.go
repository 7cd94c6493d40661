// Command gomysqlmcp runs the MySQL MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set by build flags).
var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "gomysqlmcp",
	Short: "MySQL MCP Server",
	Long: `A security-focused MySQL server for AI agents, speaking the Model
Context Protocol. Every statement is classified and risk-scored against
the configured policy before it reaches the database.

Configuration is read from the environment (MYSQL_HOST, MYSQL_USER,
MYSQL_PASSWORD, MYSQL_DATABASE, ENV_TYPE, ALLOWED_RISK_LEVELS, ...).`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	RunE:  runServe,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and database connectivity",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
