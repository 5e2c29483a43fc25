package indexer

import "time"

// SetNow replaces the clock of an Indexer for testing.
func (i *Indexer) SetNow(now func() time.Time) {
	i.now = now
}
