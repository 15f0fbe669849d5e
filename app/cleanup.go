package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/daemon"
	"github.com/claudia-sync/claudia/internal/db/controller/timeline"
	"github.com/claudia-sync/claudia/internal/db/models"
)

// retentionMonths is how long deactivated mappings and their history are
// kept before the cleanup command considers them removable.
const retentionMonths = 15

func init() { //nolint: gochecknoinits
	cleanupCmd.Flags().BoolVar(&cleanupForce, "force", false,
		"Actually delete; without it only report what would be deleted")

	rootCmd.AddCommand(cleanupCmd)
}

var (
	cleanupForce bool

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove long-deactivated mappings and orphaned history past retention",
		PreRun: func(_ *cobra.Command, _ []string) {
			loadConfig()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			d, err := daemon.New(ctx, &cfg)
			if err != nil {
				return err
			}

			return cleanup(d.DB(), cleanupForce)
		},
	}
)

func cleanup(db *gorm.DB, force bool) error {
	cutoff := time.Now().AddDate(0, -retentionMonths, 0)

	removable, err := removableMappings(db, cutoff)
	if err != nil {
		return err
	}

	for _, mp := range removable {
		log.Info().Uint("mapping", mp.ID).Str("type", string(mp.Type)).
			Str("name", mp.Name).Bool("force", force).
			Msg("mapping past retention")
	}

	if !force {
		log.Info().Int("mappings", len(removable)).
			Msg("dry run finished, re-run with --force to delete")
		return nil
	}

	// Membership edges and drive permissions cascade; timeline entries
	// keep their text with the mapping reference set to null.
	for _, mp := range removable {
		if err := db.Delete(&models.Mapping{}, mp.ID).Error; err != nil {
			return err
		}
	}

	if err := removeUnmappedExtras(db); err != nil {
		return err
	}

	pruned, err := timeline.PruneUnowned(db, cutoff)
	if err != nil {
		return err
	}

	log.Info().Int("mappings", len(removable)).Int64("timeline", pruned).
		Msg("cleanup finished")

	return nil
}

// removableMappings lists mappings that have been inactive since before the
// cutoff, hold no backend identity, and saw no audit activity since.
func removableMappings(db *gorm.DB, cutoff time.Time) ([]models.Mapping, error) {
	var candidates []models.Mapping
	err := db.
		Where("active = ?", false).
		Where("updated_at < ?", cutoff).
		Where("directory_guid = '' AND idp_id = '' AND groupware_id = '' AND chat_space_id = ''").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	removable := make([]models.Mapping, 0, len(candidates))
	for _, mp := range candidates {
		last, err := timeline.LastForMapping(db, mp.ID)
		if err != nil {
			return nil, err
		}
		if last != nil && last.When.After(cutoff) {
			continue
		}
		removable = append(removable, mp)
	}

	return removable, nil
}

// removeUnmappedExtras deletes deactivated extra persons and groups whose
// mapping is gone, so the manual tables do not accumulate dead rows.
func removeUnmappedExtras(db *gorm.DB) error {
	err := db.
		Where("active = ?", false).
		Where("id NOT IN (?)", db.Model(&models.Mapping{}).
			Select("external_ref").Where("type = ?", models.MappingTypeExtraPerson)).
		Delete(&models.ExtraPerson{}).Error
	if err != nil {
		return err
	}

	return db.
		Where("active = ?", false).
		Where("id NOT IN (?)", db.Model(&models.Mapping{}).
			Select("external_ref").Where("type = ?", models.MappingTypeExtraGroup)).
		Delete(&models.ExtraGroup{}).Error
}
