// Package membership provides CRUD operations for manual membership edges
// between mappings.
package membership

import (
	"errors"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
)

const (
	edgeQueryPattern = "group_id = ? AND member_id = ?"
)

var (
	// ErrMembershipNotFound is returned when a membership edge is not found.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrMembershipAlreadyExists is returned when the edge already exists.
	ErrMembershipAlreadyExists = errors.New("membership already exists")
	// ErrSelfMembership is returned when group and member are the same mapping.
	ErrSelfMembership = errors.New("mapping cannot be a member of itself")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Flags selects which backends a membership edge propagates to.
type Flags struct {
	Directory   bool
	Mail        bool
	SharedDrive bool
}

// Get retrieves the membership edge between a group and a member mapping.
func Get(db *gorm.DB, groupID, memberID uint) (*models.Membership, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var edge models.Membership
	result := db.Where(edgeQueryPattern, groupID, memberID).First(&edge)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, result.Error
	}

	return &edge, nil
}

// Create adds a membership edge between a group and a member mapping.
func Create(db *gorm.DB, groupID, memberID uint, flags Flags) (*models.Membership, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if groupID == memberID {
		return nil, ErrSelfMembership
	}

	var existing models.Membership
	result := db.Where(edgeQueryPattern, groupID, memberID).First(&existing)
	if result.Error == nil {
		return nil, ErrMembershipAlreadyExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	edge := &models.Membership{
		GroupID:     groupID,
		MemberID:    memberID,
		Directory:   flags.Directory,
		Mail:        flags.Mail,
		SharedDrive: flags.SharedDrive,
	}

	result = db.Create(edge)
	if result.Error != nil {
		return nil, result.Error
	}

	return edge, nil
}

// Delete removes the membership edge between a group and a member mapping.
func Delete(db *gorm.DB, groupID, memberID uint) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Where(edgeQueryPattern, groupID, memberID).Delete(&models.Membership{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMembershipNotFound
	}

	return nil
}

// ForGroup retrieves all edges where the mapping is the group side.
func ForGroup(db *gorm.DB, groupID uint) ([]models.Membership, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var edges []models.Membership
	result := db.Where("group_id = ?", groupID).Find(&edges)
	if result.Error != nil {
		return nil, result.Error
	}

	return edges, nil
}

// ForMember retrieves all edges where the mapping is the member side.
func ForMember(db *gorm.DB, memberID uint) ([]models.Membership, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var edges []models.Membership
	result := db.Where("member_id = ?", memberID).Find(&edges)
	if result.Error != nil {
		return nil, result.Error
	}

	return edges, nil
}
