package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/pricing"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
)

// Task types of the seeded maintenance jobs.
const (
	TaskPantrySweep  = "pantry_sweep"
	TaskPriceRefresh = "price_refresh"
	TaskEventPrune   = "event_prune"
	TaskCachePurge   = "cache_purge"
	TaskDBBackup     = "db_backup"
)

const eventRetention = 90 * 24 * time.Hour

// PantryAlerter reports per-user pantry stock problems.
type PantryAlerter interface {
	Alerts(ctx context.Context) ([]services.PantryAlert, error)
}

// PriceRefresher re-prices the current week's shopping lists.
type PriceRefresher interface {
	RefreshPrices(ctx context.Context) (int, error)
}

// Backuper snapshots the database and trims old snapshots.
type Backuper interface {
	CreateBackup(ctx context.Context, name string) (models.Backup, error)
	Prune(ctx context.Context, keep int) (int, error)
}

// Tasks builds the handler table for the seeded jobs.
func Tasks(pantry PantryAlerter, prices PriceRefresher, events services.EventServiceProvider, cache pricing.Cache) map[string]Task {
	tasks := map[string]Task{
		TaskPantrySweep:  PantrySweep(pantry, events),
		TaskPriceRefresh: PriceRefresh(prices),
		TaskEventPrune:   EventPrune(events, time.Now),
	}
	if cache != nil {
		tasks[TaskCachePurge] = CachePurge(cache)
	}
	return tasks
}

// PantrySweep records a warning event for every user with low, expiring or expired stock.
func PantrySweep(pantry PantryAlerter, events services.EventServiceProvider) Task {
	return func(ctx context.Context) (string, error) {
		alerts, err := pantry.Alerts(ctx)
		if err != nil {
			return "", err
		}
		alerted := 0
		for _, a := range alerts {
			if a.LowStock == 0 && a.ExpiringSoon == 0 && a.Expired == 0 {
				continue
			}
			userID := a.UserID
			events.Record(ctx, "pantry.alert", services.LevelWarn,
				fmt.Sprintf("%d low stock, %d expiring soon, %d expired", a.LowStock, a.ExpiringSoon, a.Expired), &userID)
			alerted++
		}
		return fmt.Sprintf("%d users alerted", alerted), nil
	}
}

// PriceRefresh re-prices unpurchased items on this week's lists.
func PriceRefresh(prices PriceRefresher) Task {
	return func(ctx context.Context) (string, error) {
		n, err := prices.RefreshPrices(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d lists re-priced", n), nil
	}
}

// EventPrune deletes activity events older than 90 days.
func EventPrune(events services.EventServiceProvider, now func() time.Time) Task {
	return func(ctx context.Context) (string, error) {
		n, err := events.PruneBefore(ctx, now().Add(-eventRetention))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d events pruned", n), nil
	}
}

// CachePurge drops expired price estimates.
func CachePurge(cache pricing.Cache) Task {
	return func(ctx context.Context) (string, error) {
		n, err := cache.Purge(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d cache entries purged", n), nil
	}
}

// DatabaseBackup takes a nightly snapshot and keeps the newest keep archives.
func DatabaseBackup(backups Backuper, keep int) Task {
	return func(ctx context.Context) (string, error) {
		b, err := backups.CreateBackup(ctx, "Scheduled backup")
		if err != nil {
			return "", err
		}
		pruned, err := backups.Prune(ctx, keep)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s written, %d old backups pruned", b.FileName, pruned), nil
	}
}
