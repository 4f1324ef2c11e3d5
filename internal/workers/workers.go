package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/config"
	"github.com/sponsorbridge/backend/internal/repositories"
	"github.com/sponsorbridge/backend/internal/services"
)

const (
	lockTTL   = time.Minute
	batchSize = 50
)

// Workers owns the background loops that drive deals forward: payment
// detection, timeouts, metric tracking, channel stats, saga recovery, purges
// and dispute escalation. Each loop runs on its own ticker; per-deal redis
// locks keep multiple worker processes from double-handling an item.
type Workers struct {
	cfg      *config.Config
	rdb      *redis.Client
	deals    *repositories.DealRepo
	dealSvc  *services.DealService
	escrow   *services.EscrowService
	tracker  *services.TrackerService
	channels *services.ChannelService
	disputes *services.DisputeService
	purge    *services.PurgeService
	log      *zap.Logger
}

func New(
	cfg *config.Config,
	rdb *redis.Client,
	deals *repositories.DealRepo,
	dealSvc *services.DealService,
	escrow *services.EscrowService,
	tracker *services.TrackerService,
	channels *services.ChannelService,
	disputes *services.DisputeService,
	purge *services.PurgeService,
	log *zap.Logger,
) *Workers {
	return &Workers{
		cfg: cfg, rdb: rdb, deals: deals, dealSvc: dealSvc, escrow: escrow,
		tracker: tracker, channels: channels, disputes: disputes, purge: purge,
		log: log,
	}
}

// Run blocks until ctx is cancelled.
func (w *Workers) Run(ctx context.Context) {
	jobs := []struct {
		name     string
		interval time.Duration
		fn       func(context.Context)
	}{
		{"payment-detector", w.cfg.PaymentPollInterval, w.detectPayments},
		{"timeout-sweep", w.cfg.TimeoutSweepInterval, w.sweepTimeouts},
		{"metric-tracker", w.cfg.MetricPollInterval, w.trackMetrics},
		{"stats-refresh", w.cfg.StatsRefreshInterval, w.refreshStats},
		{"saga-recovery", w.cfg.SagaRetryInterval, w.recoverSagas},
		{"purge", w.cfg.PurgeInterval, w.purgeSettled},
		{"dispute-escalation", w.cfg.EscalationInterval, w.escalateDisputes},
	}

	for _, job := range jobs {
		go w.loop(ctx, job.name, job.interval, job.fn)
	}
	<-ctx.Done()
}

func (w *Workers) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	w.log.Info("worker started", zap.String("job", name), zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped", zap.String("job", name))
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// tryLock claims a short-lived per-item lock. When redis is down the lock is
// granted; a missed lock only risks duplicate work, which every job tolerates.
func (w *Workers) tryLock(ctx context.Context, key string) bool {
	ok, err := w.rdb.SetNX(ctx, key, "1", lockTTL).Result()
	if err != nil {
		w.log.Warn("worker lock unavailable", zap.String("key", key), zap.Error(err))
		return true
	}
	return ok
}

func (w *Workers) unlock(ctx context.Context, key string) {
	w.rdb.Del(ctx, key)
}

func dealLockKey(dealID int64) string {
	return fmt.Sprintf("lock:deal:%d", dealID)
}

// detectPayments checks escrow balances for deals awaiting payment.
func (w *Workers) detectPayments(ctx context.Context) {
	deals, err := w.deals.ListAwaitingPayment(ctx, batchSize)
	if err != nil {
		w.log.Error("list awaiting payment", zap.Error(err))
		return
	}

	for i := range deals {
		d := &deals[i]
		key := dealLockKey(d.ID)
		if !w.tryLock(ctx, key) {
			continue
		}
		funded, err := w.escrow.CheckDeposit(ctx, d)
		w.unlock(ctx, key)
		if err != nil {
			w.log.Warn("deposit check failed", zap.Int64("deal_id", d.ID), zap.Error(err))
			continue
		}
		if funded {
			w.log.Info("deal funded", zap.Int64("deal_id", d.ID))
		}
	}
}

// sweepTimeouts expires deals past their stage deadline.
func (w *Workers) sweepTimeouts(ctx context.Context) {
	n, err := w.dealSvc.SweepTimeouts(ctx, batchSize)
	if err != nil {
		w.log.Error("timeout sweep", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("deals timed out", zap.Int("count", n))
	}
}

// trackMetrics polls post metrics for tracking deals and retries payouts for
// deals stuck in verified.
func (w *Workers) trackMetrics(ctx context.Context) {
	deals, err := w.deals.ListTracking(ctx, batchSize)
	if err != nil {
		w.log.Error("list tracking deals", zap.Error(err))
		return
	}

	for i := range deals {
		d := &deals[i]
		key := dealLockKey(d.ID)
		if !w.tryLock(ctx, key) {
			continue
		}
		err := w.tracker.EvaluateTrackingDeal(ctx, d)
		w.unlock(ctx, key)
		if err != nil {
			w.log.Warn("metric evaluation failed", zap.Int64("deal_id", d.ID), zap.Error(err))
		}
	}

	w.tracker.RetryPayouts(ctx)
}

// refreshStats re-scrapes channels whose public stats have gone stale.
func (w *Workers) refreshStats(ctx context.Context) {
	n, err := w.channels.RefreshStale(ctx, w.cfg.StatsRefreshInterval, batchSize)
	if err != nil {
		w.log.Error("stats refresh", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("channel stats refreshed", zap.Int("count", n))
	}
}

// recoverSagas re-drives pending relay transfers that lost their process
// between hops.
func (w *Workers) recoverSagas(ctx context.Context) {
	if err := w.escrow.RecoverPending(ctx); err != nil {
		w.log.Error("saga recovery", zap.Error(err))
	}
}

// purgeSettled destroys sensitive data on deals past the retention window,
// leaving a hash receipt behind.
func (w *Workers) purgeSettled(ctx context.Context) {
	deals, err := w.deals.ListPurgeable(ctx, w.cfg.RetentionDays, batchSize)
	if err != nil {
		w.log.Error("list purgeable deals", zap.Error(err))
		return
	}

	for i := range deals {
		d := &deals[i]
		key := dealLockKey(d.ID)
		if !w.tryLock(ctx, key) {
			continue
		}
		_, err := w.purge.PurgeDeal(ctx, d.ID)
		w.unlock(ctx, key)
		if err != nil {
			w.log.Error("purge failed", zap.Int64("deal_id", d.ID), zap.Error(err))
		}
	}
}

// escalateDisputes hands disputes past the mutual window to admins.
func (w *Workers) escalateDisputes(ctx context.Context) {
	n, err := w.disputes.EscalateExpired(ctx)
	if err != nil {
		w.log.Error("dispute escalation", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("disputes escalated", zap.Int("count", n))
	}
}
