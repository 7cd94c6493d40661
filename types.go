package mymcp

// QueryInput is the input for the Query tool.
type QueryInput struct {
	// SQL is the statement text. May contain multiple statements; the
	// security policy decides whether that is acceptable.
	SQL string `json:"sql"`

	// Params are positional arguments bound to ? placeholders.
	Params []interface{} `json:"params,omitempty"`

	// ContextID names the execution context whose pool runs the
	// statement. Empty means the engine's default context.
	ContextID string `json:"context_id,omitempty"`

	// Stream fetches results in batches of BatchSize rows instead of all
	// at once. Bounds peak memory on large result sets.
	Stream    bool `json:"stream,omitempty"`
	BatchSize int  `json:"batch_size,omitempty"`
}

// ResultMetadata describes what produced the rows in a QueryOutput.
type ResultMetadata struct {
	OperationType string `json:"operation_type"`
	ResultCount   int    `json:"result_count"`
	RiskLevel     string `json:"risk_level,omitempty"`
}

// QueryOutput is the output of the Query tool. All failures (denials,
// connection failures, driver errors) are placed in Error with the
// taxonomy code in ErrorType; callers never see a Go error or a raw
// driver exception.
type QueryOutput struct {
	Metadata  ResultMetadata           `json:"metadata"`
	Results   []map[string]interface{} `json:"results"`
	Error     string                   `json:"error,omitempty"`
	ErrorType string                   `json:"error_type,omitempty"`
}

// BatchStatement is one statement in an ExecBatch transaction.
type BatchStatement struct {
	SQL    string        `json:"sql"`
	Params []interface{} `json:"params,omitempty"`
}

// ShowDatabasesInput is the input for the mysql_show_databases tool.
type ShowDatabasesInput struct {
	Pattern       string `json:"pattern,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	ExcludeSystem bool   `json:"exclude_system,omitempty"`
	ContextID     string `json:"context_id,omitempty"`
}

// ShowTablesInput is the input for the mysql_show_tables tool.
type ShowTablesInput struct {
	Database     string `json:"database,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	ExcludeViews bool   `json:"exclude_views,omitempty"`
	ContextID    string `json:"context_id,omitempty"`
}

// TableInput names one table, optionally qualified by database.
type TableInput struct {
	Table     string `json:"table"`
	Database  string `json:"database,omitempty"`
	ContextID string `json:"context_id,omitempty"`
}

// ShowVariablesInput is the input for the mysql_show_variables and
// mysql_show_status tools.
type ShowVariablesInput struct {
	Pattern   string `json:"pattern,omitempty"`
	Global    bool   `json:"global,omitempty"`
	ContextID string `json:"context_id,omitempty"`
}

// PaginateInput is the input for the mysql_paginate_results tool.
type PaginateInput struct {
	SQL       string `json:"sql"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	ContextID string `json:"context_id,omitempty"`
}
