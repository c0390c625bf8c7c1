package results

// FreeStatementMsg asks the app to free the displayed statement.
type FreeStatementMsg struct {
	StmtID string
}

// StatusNotifyMsg tells the app to show a message in the status bar
type StatusNotifyMsg struct {
	Message string
}
