package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// DefaultPageSize is the number of records fetched per page.
	DefaultPageSize = 100
	// maxRecords is the deepest offset+limit the records endpoint serves.
	maxRecords = 10000
)

// MirrorInput is the input for the mirror workflow.
type MirrorInput struct {
	PageSize int
}

// MirrorResult summarizes one mirror run.
type MirrorResult struct {
	Pages    int
	Upserted int
	Pruned   int
}

// MirrorWorkflow copies the restroom dataset into Postgres page by page,
// then deletes rows the run did not see. Pruning is skipped when the run
// stored nothing, so an empty upstream response never wipes the mirror.
func MirrorWorkflow(ctx workflow.Context, input MirrorInput) (MirrorResult, error) {
	logger := workflow.GetLogger(ctx)

	pageSize := input.PageSize
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	startedAt := workflow.Now(ctx)
	logger.Info("Starting mirror sync", "pageSize", pageSize)

	var result MirrorResult
	for offset := 0; offset+pageSize <= maxRecords; offset += pageSize {
		var page PageResult
		err := workflow.ExecuteActivity(ctx, "SyncPage", SyncPageInput{
			Offset: offset,
			Limit:  pageSize,
			SeenAt: startedAt,
		}).Get(ctx, &page)
		if err != nil {
			logger.Warn("page sync failed, mirror left unpruned", "offset", offset, "error", err)
			return result, err
		}

		result.Pages++
		result.Upserted += page.Upserted

		if page.Fetched < pageSize || (page.Total > 0 && offset+pageSize >= page.Total) {
			break
		}
	}

	if result.Upserted == 0 {
		logger.Warn("mirror sync stored no records, skipping prune")
		return result, nil
	}

	err := workflow.ExecuteActivity(ctx, "PruneStale", startedAt).Get(ctx, &result.Pruned)
	if err != nil {
		return result, err
	}

	logger.Info("Mirror sync complete", "pages", result.Pages, "upserted", result.Upserted, "pruned", result.Pruned)
	return result, nil
}
