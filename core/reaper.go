package core

import (
	"context"
	"fmt"
	"time"
)

// ReapJobID names the background job that prunes revoked grants past
// the retention window.
const ReapJobID = "access.grants.reap"

// EnqueueReap schedules a reap run through the configured job queue.
func (s *Service) EnqueueReap(ctx context.Context, now time.Time) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "enqueue_reap", err, fields)
	}()

	if s.jobEnqueuer == nil {
		err = s.mapError(fmt.Errorf("core: job enqueuer is required"))
		return err
	}
	cutoff := now.UTC().Add(-s.config.ReaperRetention())
	fields["cutoff"] = cutoff.Format(time.RFC3339)
	err = s.mapError(s.jobEnqueuer.Enqueue(ctx, &ReapMessage{
		Cutoff:         cutoff,
		IdempotencyKey: fmt.Sprintf("%s:%s", ReapJobID, cutoff.Format(time.RFC3339)),
	}))
	return err
}

// ReapRevokedGrants deletes revoked grants whose revocation happened
// before the cutoff. Active grants are never touched, revocation is
// the only door out of the table.
func (s *Service) ReapRevokedGrants(ctx context.Context, cutoff time.Time) (removed int64, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"cutoff": cutoff.UTC().Format(time.RFC3339),
	}
	defer func() {
		fields["removed"] = removed
		s.observeOperation(ctx, startedAt, "reap_revoked_grants", err, fields)
	}()

	removed, err = s.grantStore.DeleteRevokedBefore(ctx, cutoff.UTC())
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return removed, nil
}
