package models

import "time"

// AuditAction is the kind of publish log record.
type AuditAction string

const (
	AuditPublish AuditAction = "publish"
	AuditError   AuditAction = "error"
)

// AuditEntry is an append-only record of one publish attempt for an
// (item, platform) pair.
type AuditEntry struct {
	ID        string
	UserID    string
	ItemID    string
	Platform  string
	Action    AuditAction
	Detail    string
	CreatedAt time.Time
}
