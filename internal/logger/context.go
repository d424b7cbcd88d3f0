package logger

// Component-specific logger functions

// Schema returns a logger for schema state operations
func Schema() Logger {
	return WithField("component", "schema")
}

// SQL returns a logger for SQL translation and execution
func SQL() Logger {
	return WithField("component", "sql")
}

// Migration returns a logger for migration loading and planning
func Migration() Logger {
	return WithField("component", "migration")
}

// Autodetect returns a logger for the change detector
func Autodetect() Logger {
	return WithField("component", "autodetect")
}

// Executor returns a logger for migration execution
func Executor() Logger {
	return WithField("component", "executor")
}

// CLI returns a logger for CLI operations
func CLI() Logger {
	return WithField("component", "cli")
}

// DB returns a logger for database operations
func DB() Logger {
	return WithField("component", "db")
}
