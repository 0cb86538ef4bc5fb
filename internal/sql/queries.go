package sql

import (
	"embed"
)

// Migrations holds the schema DDL, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/register_run.sql
var RegisterRun string

//go:embed queries/finish_run.sql
var FinishRun string

//go:embed queries/delete_run_scores.sql
var DeleteRunScores string
