package enums

import "fmt"

// MigrationState tracks the one-shot guest to remote cart migration of a session.
type MigrationState string

const (
	MigrationStateNotMigrated MigrationState = "not_migrated"
	MigrationStateMigrating   MigrationState = "migrating"
	MigrationStateMigrated    MigrationState = "migrated"
)

var validMigrationStates = []MigrationState{
	MigrationStateNotMigrated,
	MigrationStateMigrating,
	MigrationStateMigrated,
}

// String implements fmt.Stringer.
func (m MigrationState) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MigrationState.
func (m MigrationState) IsValid() bool {
	for _, candidate := range validMigrationStates {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMigrationState converts raw input into a MigrationState.
func ParseMigrationState(value string) (MigrationState, error) {
	for _, candidate := range validMigrationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid migration state %q", value)
}
