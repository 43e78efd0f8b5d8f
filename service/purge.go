package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type PurgeStore interface {
	DeletedOwners(ctx context.Context, before time.Time) ([]string, error)
	ScrubDeleted(ctx context.Context, uid string, before time.Time) (int64, error)
	PurgeDeleted(ctx context.Context, uid string, before time.Time, createdBefore time.Time) (int64, error)
}

// UsageWindows tells where a user's counted usage begins.
type UsageWindows interface {
	WindowStart(ctx context.Context, userID string) (time.Time, error)
}

// PurgeTask clears soft-deleted messages once they are older than the
// retention period. Their text is blanked right away; the rows themselves go
// only when they fall before the owner's usage window, so spent gems stay
// spent. Children of purged messages render as orphans afterwards.
type PurgeTask struct {
	store     PurgeStore
	windows   UsageWindows
	retention time.Duration
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewPurgeTask(store PurgeStore, windows UsageWindows, retention time.Duration, logger logrus.FieldLogger) *PurgeTask {
	return &PurgeTask{store: store, windows: windows, retention: retention, logger: logger, now: time.Now}
}

// Run returns the number of rows hard-deleted.
func (p *PurgeTask) Run(ctx context.Context) (int64, error) {
	p.logger.Infof("[%s] Start scheduled task PurgeDeletedMessages", "scheduled task")
	startTime := p.now()
	cutoff := startTime.Add(-p.retention)

	uids, err := p.store.DeletedOwners(ctx, cutoff)
	if err != nil {
		p.logger.Warnf("[%s] purge error, %s", "scheduled task", err)
		return 0, fmt.Errorf("failed to purge deleted messages: %w", err)
	}

	var scrubbed, purged int64
	for _, uid := range uids {
		n, err := p.store.ScrubDeleted(ctx, uid, cutoff)
		if err != nil {
			p.logger.Warnf("[%s] purge error, %s", "scheduled task", err)
			return purged, fmt.Errorf("failed to purge deleted messages: %w", err)
		}
		scrubbed += n

		windowStart, err := p.windows.WindowStart(ctx, uid)
		if err != nil {
			p.logger.Warnf("[%s] keeping deleted rows of %s, %s", "scheduled task", uid, err)
			continue
		}
		n, err = p.store.PurgeDeleted(ctx, uid, cutoff, windowStart)
		if err != nil {
			p.logger.Warnf("[%s] purge error, %s", "scheduled task", err)
			return purged, fmt.Errorf("failed to purge deleted messages: %w", err)
		}
		purged += n
	}
	purgedTotal.Add(float64(purged))

	p.logger.Infof("[%s] Finished scheduled task PurgeDeletedMessages, %d users, %d scrubbed, %d purged, cost %v",
		"scheduled task", len(uids), scrubbed, purged, time.Since(startTime))
	return purged, nil
}

// Schedule registers the task on c under the given cron spec.
func (p *PurgeTask) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		_, _ = p.Run(context.Background())
	})
	if err != nil {
		return 0, fmt.Errorf("invalid purge schedule %q: %w", spec, err)
	}
	return id, nil
}
