package interfaces

// DataSource is the update processor contract: something that populates a DataStore, either once
// (polling) or continuously (streaming), and reports when it has completed its first successful
// sync.
type DataSource interface {
	// Initialized reports whether the data source has completed at least one successful sync.
	Initialized() bool
	// Start begins the update process; closeWhenReady is closed once Initialized() would return
	// true, or once the data source gives up permanently (e.g. on a 401).
	Start(closeWhenReady chan<- struct{})
	// Close shuts down the data source.
	Close() error
}
