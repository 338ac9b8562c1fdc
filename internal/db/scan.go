package db

import (
	"database/sql"
	"strings"
	"time"
)

// timePtr converts a nullable column into a *time.Time.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullTime converts a *time.Time into a driver-friendly value.
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// joinList flattens a string slice for TEXT storage.
func joinList(ss []string) string {
	return strings.Join(ss, ",")
}

// splitList reverses joinList; an empty column yields a nil slice.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
