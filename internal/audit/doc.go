// Package audit records operator actions taken through the API: scans,
// saving discovered devices and switching outputs.
//
// Entries are append-only and stored in the audit_log table.
package audit
