package state

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// cronParser accepts standard 5-field expressions and descriptors such as
// "@every 1h".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type SweeperConfig struct {
	Schedule string        `split_words:"true" default:"@every 1h"`
	MaxAge   time.Duration `split_words:"true" default:"24h"`
}

// Sweeper evicts idle conversations on a cron schedule.
type Sweeper struct {
	store  *Store
	maxAge time.Duration
	cron   *cron.Cron
}

func NewSweeper(store *Store, cfg SweeperConfig) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("sweeper: store is required")
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("sweeper: max age must be > 0, got %s", cfg.MaxAge)
	}

	sw := &Sweeper{
		store:  store,
		maxAge: cfg.MaxAge,
		cron:   cron.New(cron.WithParser(cronParser)),
	}
	if _, err := sw.cron.AddFunc(cfg.Schedule, sw.RunOnce); err != nil {
		return nil, fmt.Errorf("sweeper: invalid schedule %q: %w", cfg.Schedule, err)
	}
	return sw, nil
}

func (sw *Sweeper) RunOnce() {
	removed := sw.store.SweepInactive(sw.maxAge)
	log.Debug().Int("removed", removed).Int("remaining", sw.store.Len()).Msg("sweep finished")
}

func (sw *Sweeper) Start() {
	sw.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (sw *Sweeper) Stop() {
	<-sw.cron.Stop().Done()
}
