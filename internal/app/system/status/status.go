// internal/app/system/status/status.go

// Package status defines the closed status vocabulary shared by users and
// workspaces.
package status

const (
	Active    = "active"
	Suspended = "suspended" // users only
	Archived  = "archived"  // workspaces only
)

// IsValid reports whether s is a known status string.
func IsValid(s string) bool {
	switch s {
	case Active, Suspended, Archived:
		return true
	}
	return false
}
