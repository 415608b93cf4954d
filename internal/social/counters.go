package social

import (
	"context"

	"reelshare/internal/apiclient"
	"reelshare/internal/featureflags"
	"reelshare/internal/models"
	"reelshare/internal/observability"
)

type counterDoc map[string]any

// bumpCounter adds delta to a denormalized counter, clamped at zero. With
// server_counters on it is one atomic request; otherwise a read then a write.
// It returns the new value, or -1 when the update failed and was logged.
func bumpCounter(ctx context.Context, api *apiclient.Client, flags Flags, actorID string,
	collection models.Collection, id, field string, delta int) int {
	var doc counterDoc
	var err error
	if flags != nil && flags.Enabled(featureflags.ServerCounters, actorID) {
		doc, err = apiclient.Increment[counterDoc](ctx, api, collection, id, field, delta)
	} else {
		doc, err = readThenWrite(ctx, api, collection, id, field, delta)
	}
	if err != nil {
		observability.LogAsyncOperationError(ctx, "update_counter", err, map[string]interface{}{
			"collection": collection.String(),
			"id":         id,
			"field":      field,
			"delta":      delta,
		})
		return -1
	}
	return counterValue(doc[field])
}

func readThenWrite(ctx context.Context, api *apiclient.Client, collection models.Collection, id, field string, delta int) (counterDoc, error) {
	doc, err := apiclient.Get[counterDoc](ctx, api, collection, id)
	if err != nil {
		return nil, err
	}
	next := max(counterValue(doc[field])+delta, 0)
	return apiclient.Patch[counterDoc](ctx, api, collection, id, map[string]any{field: next})
}

func counterValue(v any) int {
	if f, ok := v.(float64); ok && f > 0 {
		return int(f)
	}
	return 0
}
