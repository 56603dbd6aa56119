package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageServer serves fixed per-page item lists and records which pages
// were requested.
func pageServer(t *testing.T, pages map[int][]any) (*httptest.Server, *[]int) {
	t.Helper()
	var mu sync.Mutex
	requested := []int{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)

		mu.Lock()
		requested = append(requested, page)
		mu.Unlock()

		items, ok := pages[page]
		if !ok {
			items = []any{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": items})
	}))
	t.Cleanup(server.Close)
	return server, &requested
}

func TestPager_ShortPageTermination(t *testing.T) {
	server, requested := pageServer(t, map[int][]any{
		1: {"a", "b"},
		2: {"c", "d"},
		3: {"e"},
	})

	c := newTestClient(t, testConfig(server.URL))
	pager := c.NewPager("invoices", "getList", nil, 1)
	pager.PageSize = 2

	items, err := pager.AllItems(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []any{"a", "b", "c", "d", "e"}, items)
	assert.Equal(t, []int{1, 2, 3}, *requested)
	assert.False(t, pager.HasMore())
}

func TestPager_EmptyPageTermination(t *testing.T) {
	server, requested := pageServer(t, map[int][]any{
		1: {"a", "b"},
		2: {"c", "d"},
	})

	c := newTestClient(t, testConfig(server.URL))

	// No page size: a full-looking final page forces one extra call
	// that returns empty.
	items, err := c.GetAll(context.Background(), "invoices", "getList", nil)
	require.NoError(t, err)

	assert.Equal(t, []any{"a", "b", "c", "d"}, items)
	assert.Equal(t, []int{1, 2, 3}, *requested)
}

func TestPager_ErrorSurfacedNotTruncated(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"errors": {"db": "gone"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"response": ["a", "b"]}`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))

	items, err := c.GetAll(context.Background(), "invoices", "getList", nil)
	require.Error(t, err)
	assert.Nil(t, items)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, map[string]any{"db": "gone"}, apiErr.Errors)
}

func TestPager_SingleObjectPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response": {"id": "1"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	pager := c.NewPager("clients", "get", nil, 1)

	items, err := pager.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": "1"}}, items)
	assert.False(t, pager.HasMore())
}

func TestPager_ExhaustedReturnsErrNoMorePages(t *testing.T) {
	server, _ := pageServer(t, map[int][]any{})

	c := newTestClient(t, testConfig(server.URL))
	pager := c.NewPager("invoices", "getList", nil, 1)

	_, err := pager.NextPage(context.Background())
	require.NoError(t, err)

	_, err = pager.NextPage(context.Background())
	assert.ErrorIs(t, err, ErrNoMorePages)
}

func TestPager_Restartable(t *testing.T) {
	server, requested := pageServer(t, map[int][]any{1: {"a"}})

	c := newTestClient(t, testConfig(server.URL))

	first, err := c.GetAll(context.Background(), "invoices", "getList", nil)
	require.NoError(t, err)
	second, err := c.GetAll(context.Background(), "invoices", "getList", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []int{1, 2, 1, 2}, *requested)
}

func TestPager_StartPage(t *testing.T) {
	server, requested := pageServer(t, map[int][]any{
		3: {"x"},
	})

	c := newTestClient(t, testConfig(server.URL))
	pager := c.NewPager("invoices", "getList", nil, 3)

	items, err := pager.AllItems(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []any{"x"}, items)
	assert.Equal(t, []int{3, 4}, *requested)
}

func TestClient_GetAllParallel(t *testing.T) {
	var mu sync.Mutex
	var pageCalls []int
	countCalls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/invoices/getListCount.json" {
			mu.Lock()
			countCalls++
			mu.Unlock()
			_, _ = w.Write([]byte(`{"response": 5}`))
			return
		}

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)
		mu.Lock()
		pageCalls = append(pageCalls, page)
		mu.Unlock()

		// 5 records, 2 per page: pages 1-2 full, page 3 short.
		var items []any
		switch page {
		case 1:
			items = []any{"r1", "r2"}
		case 2:
			items = []any{"r3", "r4"}
		case 3:
			items = []any{"r5"}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": items})
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))

	items, err := c.GetAllParallel(context.Background(), "invoices", "getList", nil, ParallelOptions{
		PageSize:  2,
		BatchSize: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"r1", "r2", "r3", "r4", "r5"}, items)
	assert.Equal(t, 1, countCalls)
	assert.ElementsMatch(t, []int{1, 2, 3}, pageCalls)
}

func TestClient_GetAllParallel_FallbackWhenCountUnusable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/invoices/getListCount.json" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"response": ["only"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"response": []}`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))

	items, err := c.GetAllParallel(context.Background(), "invoices", "getList", nil, ParallelOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{"only"}, items)
}

func TestClient_GetAllParallel_FailedPageContributesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/invoices/getListCount.json" {
			_, _ = w.Write([]byte(`{"response": 4}`))
			return
		}
		if r.URL.Query().Get("page") == "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": []any{fmt.Sprintf("p%s", r.URL.Query().Get("page"))},
		})
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))

	items, err := c.GetAllParallel(context.Background(), "invoices", "getList", nil, ParallelOptions{
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"p2"}, items)
}
