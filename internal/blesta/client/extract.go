package client

import (
	"context"
	"sync"
)

// Target identifies one paginated endpoint for batch extraction.
type Target struct {
	Model  string
	Method string
	Params map[string]any
}

// Key returns the "model.method" label used for the result mapping.
func (t Target) Key() string {
	return t.Model + "." + t.Method
}

// ExtractResult holds the collected records of one target, or the
// error that stopped its pagination. Partial failure of one target
// never discards the others.
type ExtractResult struct {
	Items []any
	Err   error
}

// Extract fetches multiple paginated endpoints sequentially, in input
// order, each drained to completion. The result is keyed by
// "model.method"; when two targets collide on that key the later one
// in input order wins. This overwrite is a documented limitation, not
// a merge.
func (c *Client) Extract(ctx context.Context, targets []Target) map[string]ExtractResult {
	out := make(map[string]ExtractResult, len(targets))
	for _, t := range targets {
		items, err := c.GetAll(ctx, t.Model, t.Method, t.Params)
		out[t.Key()] = ExtractResult{Items: items, Err: err}
	}
	return out
}

// ExtractConcurrent fetches all targets at once, fan-out/fan-in, and
// joins the results. Key collisions resolve by input order exactly as
// in Extract, regardless of completion order.
func (c *Client) ExtractConcurrent(ctx context.Context, targets []Target) map[string]ExtractResult {
	results := make([]ExtractResult, len(targets))

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			items, err := c.GetAll(ctx, t.Model, t.Method, t.Params)
			results[i] = ExtractResult{Items: items, Err: err}
		}(i, t)
	}
	wg.Wait()

	out := make(map[string]ExtractResult, len(targets))
	for i, t := range targets {
		out[t.Key()] = results[i]
	}
	return out
}
