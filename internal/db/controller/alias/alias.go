// Package alias provides CRUD operations for extra personal e-mail aliases
// attached to a person mapping.
package alias

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
)

var (
	// ErrAliasNotFound is returned when an alias is not found.
	ErrAliasNotFound = errors.New("alias not found")
	// ErrAliasAlreadyExists is returned when the alias already exists on
	// the mapping.
	ErrAliasAlreadyExists = errors.New("alias already exists")
	// ErrAliasMalformed is returned for an address without a domain part.
	ErrAliasMalformed = errors.New("alias address is malformed")
	// ErrAliasDomainNotAllowed is returned when the address's domain is
	// not on the allow-list.
	ErrAliasDomainNotAllowed = errors.New("alias domain not allowed")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Create adds an extra personal alias to a mapping. The address's domain
// must be on the allow-list; an empty allow-list refuses every address.
func Create(db *gorm.DB, mappingID uint, address string, allowedDomains []string) (*models.ExtraPersonalAlias, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	address = strings.ToLower(strings.TrimSpace(address))

	local, domain, found := strings.Cut(address, "@")
	if !found || local == "" || domain == "" {
		return nil, ErrAliasMalformed
	}

	allowed := false
	for _, d := range allowedDomains {
		if strings.EqualFold(d, domain) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrAliasDomainNotAllowed
	}

	var existing models.ExtraPersonalAlias
	result := db.Where("mapping_id = ? AND alias = ?", mappingID, address).First(&existing)
	if result.Error == nil {
		return nil, ErrAliasAlreadyExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	entry := &models.ExtraPersonalAlias{MappingID: mappingID, Alias: address}
	if result := db.Create(entry); result.Error != nil {
		return nil, result.Error
	}

	return entry, nil
}

// Delete removes an extra personal alias from a mapping.
func Delete(db *gorm.DB, mappingID uint, address string) error {
	if db == nil {
		return ErrDBNil
	}

	address = strings.ToLower(strings.TrimSpace(address))

	result := db.Where("mapping_id = ? AND alias = ?", mappingID, address).
		Delete(&models.ExtraPersonalAlias{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAliasNotFound
	}

	return nil
}

// ForMapping retrieves the extra personal aliases of a mapping.
func ForMapping(db *gorm.DB, mappingID uint) ([]models.ExtraPersonalAlias, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var entries []models.ExtraPersonalAlias
	result := db.Where("mapping_id = ?", mappingID).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}
