package ledger

import (
	"errors"
	"strings"

	"github.com/claudia-sync/claudia/internal/db/controller/membership"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

// GroupSelect filters group and member resolution to the edges a backend
// cares about.
type GroupSelect int

const (
	// SelectAll resolves every edge regardless of backend flags.
	SelectAll GroupSelect = iota
	// SelectDirectory resolves edges propagated to the directory.
	SelectDirectory
	// SelectMail resolves edges propagated to groupware mail groups.
	SelectMail
	// SelectSharedDrive resolves edges propagated to shared drives.
	SelectSharedDrive
)

func (sel GroupSelect) matches(edge models.Membership) bool {
	switch sel {
	case SelectDirectory:
		return edge.Directory
	case SelectMail:
		return edge.Mail
	case SelectSharedDrive:
		return edge.SharedDrive
	default:
		return true
	}
}

// Groups resolves the groups a mapping belongs to: the entity's own derived
// groups, manual edges matching the selection, and for persons the implicit
// active-members and webmasters groups.
func (l *Ledger) Groups(mp *models.Mapping, sel GroupSelect) ([]models.Mapping, error) {
	seen := map[uint]bool{}
	var out []models.Mapping

	add := func(g *models.Mapping) {
		if !seen[g.ID] {
			seen[g.ID] = true
			out = append(out, *g)
		}
	}

	// Derived groups never propagate to shared drives.
	if sel != SelectSharedDrive {
		e, err := l.Entity(mp)
		if err == nil {
			groups, err := e.Groups()
			if err != nil {
				return nil, err
			}
			for _, g := range groups {
				gm, err := l.Wrap(g)
				if err != nil {
					return nil, err
				}
				add(gm)
			}
		} else if !errors.Is(err, mappable.ErrEntityNotFound) && !errors.Is(err, mappable.ErrUnknownType) {
			return nil, err
		}
	}

	edges, err := membership.ForMember(l.db, mp.ID)
	if err != nil {
		return nil, err
	}
	for _, edge := range edges {
		if !sel.matches(edge) {
			continue
		}
		gm, err := l.Get(edge.GroupID)
		if err != nil {
			return nil, err
		}
		add(gm)
	}

	if (sel == SelectAll || sel == SelectDirectory) && mp.IsPersonType() {
		implicit, err := l.implicitGroupsFor(mp)
		if err != nil {
			return nil, err
		}
		for i := range implicit {
			add(&implicit[i])
		}
	}

	return out, nil
}

// implicitGroupsFor returns the configured active-members and webmasters
// groups for a person that needs a directory account.
func (l *Ledger) implicitGroupsFor(mp *models.Mapping) ([]models.Mapping, error) {
	needsDir, err := l.NeedsDirectoryAccount(mp)
	if err != nil || !needsDir {
		return nil, err
	}

	var out []models.Mapping

	if l.cfg.ActiveMembersMapping != 0 {
		gm, err := l.Get(l.cfg.ActiveMembersMapping)
		if err == nil {
			out = append(out, *gm)
		} else if !errors.Is(err, ErrMappingNotFound) {
			return nil, err
		}
	}

	if l.cfg.WebmastersMapping != 0 {
		e, err := l.Entity(mp)
		if err == nil && e.ExtraAttrs()["webmaster"] == "true" {
			gm, err := l.Get(l.cfg.WebmastersMapping)
			if err == nil {
				out = append(out, *gm)
			} else if !errors.Is(err, ErrMappingNotFound) {
				return nil, err
			}
		}
	}

	return out, nil
}

// Members resolves the members of a group mapping: the entity's own member
// list, manual edges matching the selection, and for the implicit groups
// the computed person set.
func (l *Ledger) Members(mp *models.Mapping, sel GroupSelect, includeFormer bool) ([]models.Mapping, error) {
	if mp.ID != 0 && (mp.ID == l.cfg.ActiveMembersMapping || mp.ID == l.cfg.WebmastersMapping) {
		return l.implicitMembers(mp)
	}

	seen := map[uint]bool{}
	var out []models.Mapping

	add := func(m *models.Mapping) {
		if !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, *m)
		}
	}

	if sel != SelectSharedDrive {
		e, err := l.Entity(mp)
		if err == nil {
			members, err := e.Members(includeFormer)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				mm, err := l.Wrap(m)
				if err != nil {
					return nil, err
				}
				add(mm)
			}
		} else if !errors.Is(err, mappable.ErrEntityNotFound) && !errors.Is(err, mappable.ErrUnknownType) {
			return nil, err
		}
	}

	edges, err := membership.ForGroup(l.db, mp.ID)
	if err != nil {
		return nil, err
	}
	for _, edge := range edges {
		if !sel.matches(edge) {
			continue
		}
		mm, err := l.Get(edge.MemberID)
		if err != nil {
			return nil, err
		}
		add(mm)
	}

	return out, nil
}

// implicitMembers computes the person set of the active-members or
// webmasters group: every person mapping that needs a directory account,
// restricted to webmasters for the latter.
func (l *Ledger) implicitMembers(group *models.Mapping) ([]models.Mapping, error) {
	webmastersOnly := group.ID == l.cfg.WebmastersMapping

	var out []models.Mapping
	for _, typ := range []models.MappingType{models.MappingTypePerson, models.MappingTypeExtraPerson} {
		source, err := l.registry.Source(typ)
		if err != nil {
			continue
		}

		entities, err := source.All()
		if err != nil {
			return nil, err
		}

		for _, e := range entities {
			if webmastersOnly && e.ExtraAttrs()["webmaster"] != "true" {
				continue
			}

			mp, err := l.Find(e)
			if err != nil {
				if errors.Is(err, ErrMappingNotFound) {
					continue
				}
				return nil, err
			}

			needsDir, err := l.NeedsDirectoryAccount(mp)
			if err != nil {
				return nil, err
			}
			if needsDir {
				out = append(out, *mp)
			}
		}
	}

	return out, nil
}

// NeedsDirectoryAccount reports whether a mapping should have a directory
// object. Contacts, alias groups and shared drives never do; everything
// else needs a short name and the needed state.
func (l *Ledger) NeedsDirectoryAccount(mp *models.Mapping) (bool, error) {
	switch mp.Type {
	case models.MappingTypeContact, models.MappingTypeAliasGroup, models.MappingTypeSharedDrive:
		return false, nil
	}

	if mp.ShortName == "" {
		return false, nil
	}

	return l.IsNeeded(mp)
}

// NeedsGroupwareAccount reports whether a mapping should have a groupware
// object: persons need a short name for their primary address, groups need
// an address, shared drives need only the needed state, contacts never do.
func (l *Ledger) NeedsGroupwareAccount(mp *models.Mapping) (bool, error) {
	switch {
	case mp.Type == models.MappingTypeContact:
		return false, nil
	case mp.IsPersonType():
		if mp.ShortName == "" {
			return false, nil
		}
	case mp.Type == models.MappingTypeSharedDrive:
		// No address required.
	default:
		if mp.Email == "" {
			return false, nil
		}
	}

	return l.IsNeeded(mp)
}

// Aliases computes the mapping's full address set: the local part of its
// address replicated over every organization mail domain. An address on an
// external domain yields no aliases.
func (l *Ledger) Aliases(mp *models.Mapping) []string {
	local, domain, ok := strings.Cut(mp.Email, "@")
	if !ok || local == "" {
		return nil
	}

	internal := false
	for _, d := range l.cfg.MailDomains {
		if strings.EqualFold(domain, d) {
			internal = true
			break
		}
	}
	if !internal {
		return nil
	}

	out := make([]string, 0, len(l.cfg.MailDomains))
	for _, d := range l.cfg.MailDomains {
		out = append(out, local+"@"+d)
	}

	return out
}

// PersonalAliases computes a person's alias addresses: name-derived local
// parts over every organization mail domain, plus manually administered
// extra aliases.
func (l *Ledger) PersonalAliases(mp *models.Mapping) ([]string, error) {
	var out []string

	e, err := l.Entity(mp)
	if err == nil {
		if p, ok := e.(mappable.Person); ok {
			for _, local := range p.PersonalAliases() {
				for _, d := range l.cfg.MailDomains {
					out = append(out, local+"@"+d)
				}
			}
		}
	} else if !errors.Is(err, mappable.ErrEntityNotFound) && !errors.Is(err, mappable.ErrUnknownType) {
		return nil, err
	}

	var extras []models.ExtraPersonalAlias
	if err := l.db.Where("mapping_id = ?", mp.ID).Find(&extras).Error; err != nil {
		return nil, err
	}
	for _, a := range extras {
		out = append(out, a.Alias)
	}

	return out, nil
}
