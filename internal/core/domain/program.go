package domain

// Program is a monitored on-chain program. Loaded once from config at
// startup and read-only afterwards.
type Program struct {
	Address    string
	Name       string
	StartSlot  uint64
	Historical bool
	Realtime   bool
}
