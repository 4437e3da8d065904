package database

import "database/sql"

// nullTime is a tiny wrapper so call sites can write `var t nullTime` and
// pass &t.NullTime to Scan without repeating the sql.NullTime stutter.
type nullTime struct {
	sql.NullTime
}
