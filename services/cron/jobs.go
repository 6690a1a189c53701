package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/utils/auth"
)

const (
	// Live classes running past this age are considered abandoned
	staleLiveClassAge = 12 * time.Hour
	// Read notifications older than this are pruned
	readNotificationAge = 90 * 24 * time.Hour
)

// DefaultJobs returns the standing maintenance schedule: an hourly
// sweep closing abandoned live classes, and a daily cleanup of expired
// blacklist tokens and old read notifications.
func DefaultJobs(
	liveClasses *services.LiveClassService,
	notifications *services.NotificationService,
	blacklist *auth.BlacklistService,
) []Job {
	return []Job{
		{
			Name:     "end_stale_live_classes",
			Schedule: "0 * * * *",
			Run: func(ctx context.Context) (string, error) {
				ended, err := liveClasses.EndStale(ctx, staleLiveClassAge)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("ended %d stale live classes", ended), nil
			},
		},
		{
			Name:     "purge_expired_tokens",
			Schedule: "30 3 * * *",
			Run: func(ctx context.Context) (string, error) {
				purged, err := blacklist.CleanupExpiredTokens(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("purged %d expired blacklist tokens", purged), nil
			},
		},
		{
			Name:     "prune_read_notifications",
			Schedule: "0 4 * * *",
			Run: func(ctx context.Context) (string, error) {
				pruned, err := notifications.PruneRead(ctx, readNotificationAge)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("pruned %d read notifications", pruned), nil
			},
		},
	}
}
