// Package recount periodically recomputes post aggregate counts from
// their marker keys. Counts move with their markers under one mutex on
// the hot path, so the sweep normally corrects nothing; it exists to
// repair drift after crashes mid-write.
package recount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"flockd/pkg/logger"
	"flockd/pkg/models"
	"flockd/pkg/store"
)

// Sweep recomputes likes, reposts and comments for every post and
// rewrites records whose stored counts drifted. It returns the number of
// posts corrected.
func Sweep() (int, error) {
	keys, err := store.ListKeys("post:")
	if err != nil {
		return 0, err
	}
	corrected := 0
	for _, k := range keys {
		id := strings.TrimPrefix(k, "post:")
		p, err := store.GetPost(id)
		if err != nil {
			continue
		}
		if p.Deleted {
			continue
		}
		likes, err := store.CountLikes(id)
		if err != nil {
			return corrected, err
		}
		reposts, err := store.CountReposts(id)
		if err != nil {
			return corrected, err
		}
		comments, err := store.CountComments(id)
		if err != nil {
			return corrected, err
		}
		if p.LikeCount == likes && p.RepostCount == reposts && p.CommentCount == comments {
			continue
		}
		_, err = store.UpdatePost(id, func(p *models.Post) {
			p.LikeCount = likes
			p.RepostCount = reposts
			p.CommentCount = comments
		})
		if err != nil {
			return corrected, err
		}
		corrected++
		logger.Warn("post_counts_corrected", "post", id, "likes", likes, "reposts", reposts, "comments", comments)
	}
	return corrected, nil
}

// Start starts the recount scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, enabled bool, cronExpr string) (context.CancelFunc, error) {
	if !enabled {
		logger.Info("recount_disabled")
		return func() {}, nil
	}

	// map empty cron to default daily @03:00
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("recount_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid recount cron expression: %s", cronExpr)
	}

	logger.Info("recount_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("recount_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("recount_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if n, err := Sweep(); err != nil {
				logger.Error("recount_run_error", "error", err)
			} else if n > 0 {
				logger.Info("recount_run_done", "corrected", n)
			}
		case <-ctx.Done():
			logger.Info("recount_scheduler_stopping")
			return
		}
	}
}
