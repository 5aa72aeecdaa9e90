package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/toiletmap/internal/core/ports"
	"github.com/samirrijal/toiletmap/internal/pkg/metrics"
)

// SyncPageInput selects one page of the dataset.
type SyncPageInput struct {
	Offset int
	Limit  int
	SeenAt time.Time
}

// PageResult reports what one SyncPage call did.
type PageResult struct {
	Fetched  int
	Upserted int
	Total    int
}

// MirrorActivities holds the activity implementations for the mirror workflow.
type MirrorActivities struct {
	Source ports.DatasetPager
	Store  ports.ToiletRepository
}

// SyncPage fetches one page from the open-data source and upserts it.
// Records travel between the two stores inside the activity so workflow
// history only carries counts.
func (a *MirrorActivities) SyncPage(ctx context.Context, in SyncPageInput) (PageResult, error) {
	pois, total, err := a.Source.FetchPage(ctx, in.Offset, in.Limit)
	if err != nil {
		return PageResult{}, fmt.Errorf("fetch page at %d: %w", in.Offset, err)
	}

	n, err := a.Store.UpsertBatch(ctx, pois, in.SeenAt)
	if err != nil {
		return PageResult{}, fmt.Errorf("upsert page at %d: %w", in.Offset, err)
	}
	metrics.MirrorRecordsUpserted.Add(float64(n))

	activity.GetLogger(ctx).Debug("page synced", "offset", in.Offset, "fetched", len(pois), "upserted", n)
	return PageResult{Fetched: len(pois), Upserted: n, Total: total}, nil
}

// PruneStale deletes mirrored rows not seen since before.
func (a *MirrorActivities) PruneStale(ctx context.Context, before time.Time) (int, error) {
	n, err := a.Store.PruneBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", before.Format(time.RFC3339), err)
	}
	activity.GetLogger(ctx).Info("stale records pruned", "count", n)
	return n, nil
}
