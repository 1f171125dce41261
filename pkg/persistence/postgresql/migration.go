package postgresql

// migrations returns the schema by version. Each entity table keeps the full
// document in JSONB; the columns the hot queries filter on are stored
// alongside and written on every save.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				doc JSONB NOT NULL
			);

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				end_time TIMESTAMP WITH TIME ZONE,
				doc JSONB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON executions (workflow_id);
			CREATE INDEX IF NOT EXISTS idx_executions_status_end_time ON executions (status, end_time);

			CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				doc JSONB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status);

			CREATE TABLE IF NOT EXISTS reminders (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				trigger_date TIMESTAMP WITH TIME ZONE NOT NULL,
				sent_date TIMESTAMP WITH TIME ZONE,
				doc JSONB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (status, trigger_date);

			CREATE TABLE IF NOT EXISTS approvals (
				id TEXT PRIMARY KEY,
				doc JSONB NOT NULL
			);

			CREATE TABLE IF NOT EXISTS rules (
				id TEXT PRIMARY KEY,
				trigger TEXT NOT NULL,
				status TEXT NOT NULL,
				doc JSONB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_rules_trigger ON rules (trigger, status);

			CREATE TABLE IF NOT EXISTS schedules (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				next_run TIMESTAMP WITH TIME ZONE NOT NULL,
				end_date TIMESTAMP WITH TIME ZONE,
				doc JSONB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules (status, next_run);
		`,
	}
}
