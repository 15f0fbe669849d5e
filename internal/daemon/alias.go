package daemon

import (
	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/controller/alias"
)

// AddPersonalAlias attaches an extra personal alias to a mapping, validated
// against the groupware allow-list, and starts a verification cycle over
// the mapping so the alias propagates. Returns the cycle id.
func (d *Daemon) AddPersonalAlias(mappingID uint, address string) (string, error) {
	_, err := alias.Create(d.db, mappingID, address, d.cfg.Groupware.AllowedAliasDomains)
	if err != nil {
		return "", err
	}

	log.Info().Uint("mapping", mappingID).Str("alias", address).
		Msg("extra personal alias added")

	return d.engine.TriggerMapping(mappingID, true)
}

// RemovePersonalAlias removes an extra personal alias and starts a
// verification cycle over the mapping. Returns the cycle id.
func (d *Daemon) RemovePersonalAlias(mappingID uint, address string) (string, error) {
	if err := alias.Delete(d.db, mappingID, address); err != nil {
		return "", err
	}

	log.Info().Uint("mapping", mappingID).Str("alias", address).
		Msg("extra personal alias removed")

	return d.engine.TriggerMapping(mappingID, true)
}
