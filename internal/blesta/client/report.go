package client

import (
	"context"
	"strings"
	"sync"
)

// periodField is the annotation key added to every flattened report row.
const periodField = "_period"

// GetReport fetches a Blesta report via report_manager/fetchAll,
// formatting the vars[] parameters the endpoint expects. Report
// responses are typically CSV; use Response.CSVRows to parse them.
// Keys in extraVars are auto-wrapped in "vars[...]" unless already
// wrapped.
func (c *Client) GetReport(ctx context.Context, reportType, startDate, endDate string, extraVars map[string]string) (*Response, error) {
	params := map[string]any{
		"type":             reportType,
		"vars[start_date]": startDate,
		"vars[end_date]":   endDate,
	}
	for key, value := range extraVars {
		paramKey := key
		if !strings.HasPrefix(key, "vars[") {
			paramKey = "vars[" + key + "]"
		}
		params[paramKey] = value
	}
	return c.Get(ctx, "report_manager", "fetchAll", params)
}

// SeriesPage pairs one month's period label with its raw report
// response, so callers can inspect per-month status codes.
type SeriesPage struct {
	Period   string
	Response *Response
}

// ReportPager lazily walks a monthly report series, one request per
// Next call, in chronological order. Unlike ReportSeries it yields
// every month including failed ones; error handling is the caller's.
type ReportPager struct {
	client     *Client
	reportType string
	extraVars  map[string]string
	months     []MonthBoundary
	next       int
}

// NewReportPager creates a pager over one report per month in
// [startMonth, endMonth] inclusive, both "YYYY-MM".
func (c *Client) NewReportPager(reportType, startMonth, endMonth string, extraVars map[string]string) (*ReportPager, error) {
	months, err := monthBoundaries(startMonth, endMonth)
	if err != nil {
		return nil, err
	}
	return &ReportPager{
		client:     c,
		reportType: reportType,
		extraVars:  extraVars,
		months:     months,
	}, nil
}

// HasMore reports whether any months remain.
func (p *ReportPager) HasMore() bool {
	return p.next < len(p.months)
}

// Next fetches the next month's report. An exhausted pager returns
// ErrNoMorePages.
func (p *ReportPager) Next(ctx context.Context) (SeriesPage, error) {
	if !p.HasMore() {
		return SeriesPage{}, ErrNoMorePages
	}
	month := p.months[p.next]
	p.next++

	p.client.logger.Debug().
		Str("report", p.reportType).
		Str("period", month.Period).
		Msg("Fetching report month")

	resp, err := p.client.GetReport(ctx, p.reportType, month.Start, month.End, p.extraVars)
	if err != nil {
		return SeriesPage{}, err
	}
	return SeriesPage{Period: month.Period, Response: resp}, nil
}

// ReportSeries fetches one report per month sequentially and returns
// all CSV rows as a flat list, each annotated with a "_period" field.
// Months that fail or return no CSV are skipped with a warning, so a
// single bad month does not abort the series; use a ReportPager when
// per-month failures must be visible.
func (c *Client) ReportSeries(ctx context.Context, reportType, startMonth, endMonth string, extraVars map[string]string) ([]map[string]string, error) {
	pager, err := c.NewReportPager(reportType, startMonth, endMonth, extraVars)
	if err != nil {
		return nil, err
	}

	rows := []map[string]string{}
	for pager.HasMore() {
		page, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		rows = c.appendSeriesRows(rows, reportType, page)
	}
	return rows, nil
}

// ReportSeriesConcurrent fetches all months of a report series at
// once, bounded by maxConcurrency when it is positive, and reassembles
// the rows in chronological month order regardless of completion
// order. Skip semantics match ReportSeries.
func (c *Client) ReportSeriesConcurrent(ctx context.Context, reportType, startMonth, endMonth string, extraVars map[string]string, maxConcurrency int) ([]map[string]string, error) {
	months, err := monthBoundaries(startMonth, endMonth)
	if err != nil {
		return nil, err
	}

	var sem chan struct{}
	if maxConcurrency > 0 {
		sem = make(chan struct{}, maxConcurrency)
	}

	responses := make([]*Response, len(months))
	errs := make([]error, len(months))

	var wg sync.WaitGroup
	for i, month := range months {
		wg.Add(1)
		go func(i int, month MonthBoundary) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			responses[i], errs[i] = c.GetReport(ctx, reportType, month.Start, month.End, extraVars)
		}(i, month)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	rows := []map[string]string{}
	for i, month := range months {
		rows = c.appendSeriesRows(rows, reportType, SeriesPage{Period: month.Period, Response: responses[i]})
	}
	return rows, nil
}

// appendSeriesRows merges one month's CSV rows into the flat series,
// annotating each row with its period. Failed and non-CSV months are
// skipped with a warning.
func (c *Client) appendSeriesRows(rows []map[string]string, reportType string, page SeriesPage) []map[string]string {
	if !page.Response.OK() {
		c.logger.Warn().
			Str("report", reportType).
			Str("period", page.Period).
			Int("status", page.Response.StatusCode).
			Msg("Skipping failed report month")
		return rows
	}
	csvRows := page.Response.CSVRows()
	if csvRows == nil {
		c.logger.Warn().
			Str("report", reportType).
			Str("period", page.Period).
			Msg("Skipping report month with no CSV data")
		return rows
	}
	for _, row := range csvRows {
		annotated := make(map[string]string, len(row)+1)
		for k, v := range row {
			annotated[k] = v
		}
		annotated[periodField] = page.Period
		rows = append(rows, annotated)
	}
	return rows
}
