// Package store holds what the SQL record stores share: the table layout they
// address and identifier quoting.
package store

import (
	"errors"

	"github.com/lib/pq"
)

// Tables names the source record table and the canonical name table.
type Tables struct {
	Records       string
	RecordID      string
	RecordName    string
	RecordGroup   string
	Canonical     string
	CanonicalID   string
	CanonicalName string
}

// DefaultTables matches the outlet schema the tool was built for.
func DefaultTables() Tables {
	return Tables{
		Records:       "outlets",
		RecordID:      "id",
		RecordName:    "raw_name",
		RecordGroup:   "outlet_clean_id",
		Canonical:     "outlets_clean",
		CanonicalID:   "id",
		CanonicalName: "clean_name",
	}
}

// Validate reports missing identifiers.
func (t Tables) Validate() error {
	for _, v := range []string{
		t.Records, t.RecordID, t.RecordName, t.RecordGroup,
		t.Canonical, t.CanonicalID, t.CanonicalName,
	} {
		if v == "" {
			return errors.New("table and column names must not be empty")
		}
	}
	return nil
}

// Quoted returns a copy with every identifier double-quoted. The quoting is
// valid for both PostgreSQL and SQLite.
func (t Tables) Quoted() Tables {
	return Tables{
		Records:       pq.QuoteIdentifier(t.Records),
		RecordID:      pq.QuoteIdentifier(t.RecordID),
		RecordName:    pq.QuoteIdentifier(t.RecordName),
		RecordGroup:   pq.QuoteIdentifier(t.RecordGroup),
		Canonical:     pq.QuoteIdentifier(t.Canonical),
		CanonicalID:   pq.QuoteIdentifier(t.CanonicalID),
		CanonicalName: pq.QuoteIdentifier(t.CanonicalName),
	}
}
