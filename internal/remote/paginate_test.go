package remote

import (
	"errors"
	"fmt"
	"testing"
)

func page(items ...Record) Record {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = map[string]any(it)
	}
	return Record{"items": list}
}

func rec(id string) Record {
	return Record{"id": id}
}

func TestCollectOffsetStopsOnEmptyPage(t *testing.T) {
	calls := 0
	fetch := func(limit, offset int) (Record, error) {
		calls++
		if offset >= 2 {
			return page(), nil
		}
		return page(rec(fmt.Sprintf("c%d", offset)), rec(fmt.Sprintf("c%d", offset+1))), nil
	}

	items, err := CollectOffset(fetch, "items", PageOptions{PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
	if calls != 2 {
		t.Errorf("expected 2 fetches, got %d", calls)
	}
}

func TestCollectOffsetStopsOnTotal(t *testing.T) {
	fetch := func(limit, offset int) (Record, error) {
		resp := page(rec(fmt.Sprintf("c%d", offset)))
		resp["meta"] = map[string]any{"total": float64(1)}
		return resp, nil
	}

	items, err := CollectOffset(fetch, "items", PageOptions{PageSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestCollectOffsetTerminatesOnRepeatedPage(t *testing.T) {
	// A non-cooperative server returns the same non-empty page forever.
	// The zero-new-items guard must end iteration after the second fetch.
	calls := 0
	fetch := func(limit, offset int) (Record, error) {
		calls++
		return page(rec("a"), rec("b")), nil
	}

	items, err := CollectOffset(fetch, "items", PageOptions{PageSize: 2, MaxPages: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 deduplicated items, got %d", len(items))
	}
	if calls != 2 {
		t.Errorf("expected 2 fetches, got %d", calls)
	}
}

func TestCollectOffsetMaxPagesCapsUnidentifiedItems(t *testing.T) {
	// Items without IDs cannot be deduplicated, so only the hard page cap
	// bounds a server that never stops producing them.
	calls := 0
	fetch := func(limit, offset int) (Record, error) {
		calls++
		return page(Record{"name": "anonymous"}), nil
	}

	if _, err := CollectOffset(fetch, "items", PageOptions{PageSize: 1, MaxPages: 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 7 {
		t.Errorf("expected max-page cap at 7 fetches, got %d", calls)
	}
}

func TestCollectOffsetReturnsPartialOnError(t *testing.T) {
	boom := errors.New("server exploded")
	fetch := func(limit, offset int) (Record, error) {
		if offset > 0 {
			return nil, boom
		}
		return page(rec("a")), nil
	}

	items, err := CollectOffset(fetch, "items", PageOptions{PageSize: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 partial item, got %d", len(items))
	}
}

func TestCollectCursorFollowsCursor(t *testing.T) {
	pages := map[string]Record{
		"": {
			"items": []any{map[string]any{"id": "a"}},
			"meta":  map[string]any{"startAfterId": "a", "startAfter": float64(100)},
		},
		"a": {
			"items": []any{map[string]any{"id": "b"}},
			"meta":  map[string]any{"startAfterId": "b", "startAfter": float64(200)},
		},
		"b": {"items": []any{}},
	}
	fetch := func(limit int, afterID string, after int) (Record, error) {
		return pages[afterID], nil
	}

	items, err := CollectCursor(fetch, "items", PageOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
}

func TestCollectCursorStopsOnRepeatedCursor(t *testing.T) {
	calls := 0
	fetch := func(limit int, afterID string, after int) (Record, error) {
		calls++
		return Record{
			"items": []any{map[string]any{"id": fmt.Sprintf("c%d", calls)}},
			"meta":  map[string]any{"startAfterId": "stuck", "startAfter": float64(42)},
		}, nil
	}

	if _, err := CollectCursor(fetch, "items", PageOptions{MaxPages: 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected cursor-repeat guard to stop after 2 fetches, got %d", calls)
	}
}

func TestCollectPagesStopsWithinMaxPages(t *testing.T) {
	calls := 0
	fetch := func(pageNum, limit int) (Record, error) {
		calls++
		return page(rec("same")), nil
	}

	items, err := CollectPages(fetch, "items", PageOptions{MaxPages: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
	if calls > 10 {
		t.Errorf("expected at most 10 fetches, got %d", calls)
	}
}

func TestCollectPagesAdvances(t *testing.T) {
	fetch := func(pageNum, limit int) (Record, error) {
		if pageNum > 3 {
			return page(), nil
		}
		return page(rec(fmt.Sprintf("p%d", pageNum))), nil
	}

	items, err := CollectPages(fetch, "items", PageOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 items, got %d", len(items))
	}
}
