// Package members provides read-only entity adapters over the member
// administration and the ledger's own entity tables, exposing them through
// the mappable capability surface.
package members

import "time"

// Person is a person record in the member administration. Read-only from
// this side; the administration owns the data.
type Person struct {
	ID uint `gorm:"primaryKey"`
	// Username is the directory-style short account name.
	Username  string `gorm:"size:100"`
	FirstName string `gorm:"size:100"`
	LastName  string `gorm:"size:150"`
	Email     string `gorm:"size:255"`
	// Member indicates an active membership of the association.
	Member bool
	// Webmaster grants membership of the implicit webmasters group.
	Webmaster bool
	// Shell is the preferred login shell name.
	Shell          string `gorm:"size:50"`
	StudentNumber  string `gorm:"size:20"`
	EmployeeNumber string `gorm:"size:20"`
	// ConsumptionMandate indicates an active direct-debit mandate for
	// point-of-sale consumptions.
	ConsumptionMandate bool
}

// TableName specifies the database table name for the Person model.
func (Person) TableName() string {
	return "persons"
}

// RFIDCard is a point-of-sale card registered to a person.
type RFIDCard struct {
	ID       uint   `gorm:"primaryKey"`
	PersonID uint   `gorm:"not null;index"`
	UID      string `gorm:"size:32;not null"`
}

// TableName specifies the database table name for the RFIDCard model.
func (RFIDCard) TableName() string {
	return "rfid_cards"
}

// Committee is a committee record in the member administration.
type Committee struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255"`
	// Abbreviation is the directory-style short group name.
	Abbreviation string `gorm:"size:100"`
	Email        string `gorm:"size:255"`
	Founded      time.Time
	// Abolished is set when the committee has been dissolved.
	Abolished *time.Time
}

// TableName specifies the database table name for the Committee model.
func (Committee) TableName() string {
	return "committees"
}

// CommitteeMember is a person's seat on a committee, bounded in time.
type CommitteeMember struct {
	ID          uint `gorm:"primaryKey"`
	CommitteeID uint `gorm:"not null;index"`
	PersonID    uint `gorm:"not null;index"`
	BeginDate   time.Time
	// EndDate is nil while the seat is current.
	EndDate *time.Time
}

// TableName specifies the database table name for the CommitteeMember model.
func (CommitteeMember) TableName() string {
	return "committee_members"
}

// DoGroupGeneration is one year's generation of an introduction do-group.
type DoGroupGeneration struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:255"`
	Year  int
	Email string `gorm:"size:255"`
	// Active indicates the generation still needs backend representation.
	Active bool
}

// TableName specifies the database table name for the DoGroupGeneration model.
func (DoGroupGeneration) TableName() string {
	return "dogroup_generations"
}

// DoGroupParticipant is a person's participation in a do-group generation.
type DoGroupParticipant struct {
	ID           uint `gorm:"primaryKey"`
	GenerationID uint `gorm:"not null;index"`
	PersonID     uint `gorm:"not null;index"`
}

// TableName specifies the database table name for the DoGroupParticipant model.
func (DoGroupParticipant) TableName() string {
	return "dogroup_participants"
}

// AdminModels returns the member-administration models for test migrations.
// Production databases are migrated by the administration itself.
func AdminModels() []any {
	return []any{
		&Person{},
		&RFIDCard{},
		&Committee{},
		&CommitteeMember{},
		&DoGroupGeneration{},
		&DoGroupParticipant{},
	}
}
