package app

import (
	"context"
	"time"

	"github.com/techknowlogia/core/internal/config"
	"github.com/techknowlogia/core/internal/modules/content/post"
	"github.com/techknowlogia/core/internal/modules/syndication/subscribe"
	pkgcron "github.com/techknowlogia/core/internal/pkg/cron"
)

const (
	jobPurgeTokens   = "purge_expired_confirm_tokens"
	jobReloadContent = "reload_content"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, subs *subscribe.Service, lib *post.Library, cfg *config.AppConfig) error {
	jobs := []pkgcron.Job{
		{
			Name:        jobPurgeTokens,
			Description: "Delete confirmation tokens past their expiry",
			Interval:    cfg.Subscribe.PurgeInterval,
			RunAtStart:  true,
			Fn: func(ctx context.Context) error {
				_, err := subs.PurgeExpiredTokens(ctx)
				return err
			},
		},
		{
			Name:        jobReloadContent,
			Description: "Re-read articles from the content directory",
			Interval:    cfg.Content.ReloadInterval,
			Fn: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				return lib.Reload(ctx)
			},
		},
	}
	for _, j := range jobs {
		if err := sched.Register(j); err != nil {
			return err
		}
	}
	return nil
}
