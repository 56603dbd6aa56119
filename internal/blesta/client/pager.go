package client

import (
	"context"
	"sync"
)

// Pager provides page-number pagination over a Blesta list endpoint.
//
// A Pager is a finite, restartable sequence: it is not resumable after
// exhaustion, and a fresh Pager starts a fresh cursor. It is not safe
// for concurrent use.
type Pager struct {
	client *Client
	model  string
	method string
	params map[string]any
	page   int
	done   bool

	// PageSize enables the short-page stop: when set, a page with
	// fewer items is treated as the last one. Zero disables it, and
	// pagination stops only on an empty page (the safe default when
	// the upstream page size is unknown).
	PageSize int
}

// NewPager creates a pager starting at startPage (use 1 for the first
// page). The "page" parameter is managed by the pager and overrides
// any caller-supplied value.
func (c *Client) NewPager(model, method string, params map[string]any, startPage int) *Pager {
	if startPage < 1 {
		startPage = 1
	}
	return &Pager{
		client: c,
		model:  model,
		method: method,
		params: params,
		page:   startPage,
	}
}

// HasMore reports whether another page may be available.
func (p *Pager) HasMore() bool {
	return !p.done
}

// NextPage fetches the next page of records and advances the cursor.
//
// The final page may be empty. An exhausted pager returns
// ErrNoMorePages. A page that fails after retries stops pagination and
// returns an *APIError, so an upstream failure is never conflated with
// end-of-data.
func (p *Pager) NextPage(ctx context.Context) ([]any, error) {
	if p.done {
		return nil, ErrNoMorePages
	}

	pageParams := make(map[string]any, len(p.params)+1)
	for k, v := range p.params {
		pageParams[k] = v
	}
	pageParams["page"] = p.page

	resp, err := p.client.Get(ctx, p.model, p.method, pageParams)
	if err != nil {
		p.done = true
		return nil, err
	}
	if !resp.OK() {
		p.done = true
		p.client.logger.Warn().
			Str("endpoint", p.model+"/"+p.method).
			Int("page", p.page).
			Int("status", resp.StatusCode).
			Msg("Pagination stopped on failed page")
		return nil, newAPIError(resp)
	}

	switch data := resp.Data().(type) {
	case nil:
		p.done = true
		return []any{}, nil
	case []any:
		if len(data) == 0 {
			p.done = true
			return []any{}, nil
		}
		if p.PageSize > 0 && len(data) < p.PageSize {
			p.done = true
			return data, nil
		}
		p.page++
		return data, nil
	default:
		// Some endpoints return a single object instead of a list.
		p.done = true
		return []any{data}, nil
	}
}

// AllItems drains the pager into a single ordered slice.
func (p *Pager) AllItems(ctx context.Context) ([]any, error) {
	items := []any{}
	for p.HasMore() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
	}
	return items, nil
}

// GetAll fetches every page of a list endpoint starting at page 1 and
// returns the records as a single ordered slice.
func (c *Client) GetAll(ctx context.Context, model, method string, params map[string]any) ([]any, error) {
	return c.NewPager(model, method, params, 1).AllItems(ctx)
}

// ParallelOptions tunes GetAllParallel.
type ParallelOptions struct {
	// CountMethod is the *Count method used to size the work.
	// Defaults to "getListCount".
	CountMethod string

	// PageSize is the number of items the API returns per page.
	// Defaults to 25, the Blesta default.
	PageSize int

	// BatchSize is how many pages are fetched in parallel per batch.
	// Defaults to 10.
	BatchSize int
}

// GetAllParallel fetches all pages of a list endpoint using a
// count-first strategy: the record count determines the number of
// pages, which are then fetched in parallel batches. Falls back to
// GetAll when the count call returns 0 or fails. Pages that fail
// individually are logged and contribute no items. Results keep their
// original page order.
func (c *Client) GetAllParallel(ctx context.Context, model, method string, params map[string]any, opts ParallelOptions) ([]any, error) {
	if opts.CountMethod == "" {
		opts.CountMethod = "getListCount"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}

	endpoint := model + "/" + method

	total := c.Count(ctx, model, opts.CountMethod, params)
	if total <= 0 {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("count", total).
			Msg("Count unusable, falling back to sequential fetch")
		return c.GetAll(ctx, model, method, params)
	}

	totalPages := (total + opts.PageSize - 1) / opts.PageSize
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("records", total).
		Int("pages", totalPages).
		Msg("Starting parallel page fetch")

	pages := make([][]any, totalPages)
	for batchStart := 1; batchStart <= totalPages; batchStart += opts.BatchSize {
		batchEnd := batchStart + opts.BatchSize
		if batchEnd > totalPages+1 {
			batchEnd = totalPages + 1
		}

		var wg sync.WaitGroup
		for page := batchStart; page < batchEnd; page++ {
			wg.Add(1)
			go func(page int) {
				defer wg.Done()
				pages[page-1] = c.fetchPage(ctx, model, method, params, page)
			}(page)
		}
		wg.Wait()
	}

	items := []any{}
	for _, page := range pages {
		items = append(items, page...)
	}
	return items, nil
}

// fetchPage fetches one page for the parallel path, absorbing failures
// into an empty result.
func (c *Client) fetchPage(ctx context.Context, model, method string, params map[string]any, page int) []any {
	pageParams := make(map[string]any, len(params)+1)
	for k, v := range params {
		pageParams[k] = v
	}
	pageParams["page"] = page

	resp, err := c.Get(ctx, model, method, pageParams)
	if err != nil || !resp.OK() {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.logger.Warn().
			Str("endpoint", model+"/"+method).
			Int("page", page).
			Int("status", status).
			Msg("Parallel page fetch failed")
		return nil
	}

	switch data := resp.Data().(type) {
	case []any:
		return data
	case nil:
		return nil
	default:
		return []any{data}
	}
}
