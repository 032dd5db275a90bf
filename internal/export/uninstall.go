package export

import (
	"errors"
	"fmt"

	"github.com/blackwell-systems/packport/internal/backup"
	"github.com/blackwell-systems/packport/internal/targets"
)

// Uninstall removes everything an export put into t: the search path line,
// the FGD block, the replaced vendor files and the resource cache. It keeps
// going after a failure and returns every error joined.
func (o *Orchestrator) Uninstall(t *targets.Target) error {
	log := o.log.With().Str("target", t.ID).Logger()
	var errList []error

	if game := o.deps.Game; game != nil {
		if _, err := game.EditGameinfo(t.Root, false); err != nil {
			log.Warn().Err(err).Msg("Failed to remove search path")
			errList = append(errList, fmt.Errorf("gameinfo: %w", err))
		}
		if _, err := game.EditFGD(t.Root, false); err != nil {
			log.Warn().Err(err).Msg("Failed to restore FGD")
			errList = append(errList, fmt.Errorf("fgd: %w", err))
		}
	}

	if err := o.deps.Backup.RestoreAll(t, backup.Manifest); err != nil {
		errList = append(errList, err)
	}
	if err := o.deps.Cache.Clear(t); err != nil {
		errList = append(errList, err)
	}

	if len(errList) == 0 {
		log.Info().Msg("Target restored")
	}
	return errors.Join(errList...)
}
