// Package models defines the GORM models of the mapping ledger and its
// coordination tables.
package models

// All returns every ledger model for migration.
func All() []any {
	return []any{
		&Mapping{},
		&Membership{},
		&Event{},
		&Timeline{},
		&DrivePermission{},
		&ExtraPerson{},
		&ExtraGroup{},
		&AliasGroup{},
		&Contact{},
		&SharedDrive{},
		&ExtraPersonalAlias{},
		&VerifyTask{},
		&Cycle{},
		&CycleVisit{},
	}
}
