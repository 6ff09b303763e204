package remote

// Pagination adapters. All three strategies turn an unreliable list endpoint
// into a bounded, deduplicated item sequence: a page contributing zero new
// items (by remote ID) ends iteration, as does reaching the server-reported
// total, and a hard page cap bounds the worst case of a server that keeps
// returning the same data forever.

// DefaultPageSize is the per-page limit used when none is configured.
const DefaultPageSize = 100

// DefaultMaxPages caps pagination when none is configured.
const DefaultMaxPages = 200

// PageOptions bounds a pagination run.
type PageOptions struct {
	PageSize int
	MaxPages int
}

func (o PageOptions) withDefaults() PageOptions {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// OffsetFetch fetches one page at the given limit and offset. The returned
// record is the full list response including any pagination metadata.
type OffsetFetch func(limit, offset int) (Record, error)

// CursorFetch fetches one page after the given cursor pair. Empty id and
// zero after mean the first page.
type CursorFetch func(limit int, afterID string, after int) (Record, error)

// NumberedFetch fetches one page by 1-based page number.
type NumberedFetch func(page, limit int) (Record, error)

// CollectOffset paginates an offset/limit endpoint. itemsKey names the list
// field in each response. On a fetch error the items gathered so far are
// returned alongside it; the caller records the error and moves on to other
// resources.
func CollectOffset(fetch OffsetFetch, itemsKey string, opts PageOptions) ([]Record, error) {
	opts = opts.withDefaults()
	var items []Record
	seen := make(map[string]bool)

	for page := 0; page < opts.MaxPages; page++ {
		resp, err := fetch(opts.PageSize, len(items))
		if err != nil {
			return items, err
		}
		batch := resp.List(itemsKey)
		if len(batch) == 0 {
			break
		}
		if appendNew(&items, seen, batch) == 0 {
			break
		}
		if total, ok := resp.Total(); ok && len(items) >= total {
			break
		}
	}
	return items, nil
}

// CollectCursor paginates a start-after cursor endpoint. It additionally
// stops when the server returns an identical cursor pair twice in a row,
// which some endpoints do instead of an empty final page.
func CollectCursor(fetch CursorFetch, itemsKey string, opts PageOptions) ([]Record, error) {
	opts = opts.withDefaults()
	var items []Record
	seen := make(map[string]bool)

	var afterID string
	var after int
	for page := 0; page < opts.MaxPages; page++ {
		resp, err := fetch(opts.PageSize, afterID, after)
		if err != nil {
			return items, err
		}
		batch := resp.List(itemsKey)
		if len(batch) == 0 {
			break
		}
		if appendNew(&items, seen, batch) == 0 {
			break
		}
		nextID, next, ok := resp.Cursor()
		if !ok || (nextID == afterID && next == after) {
			break
		}
		afterID, after = nextID, next
	}
	return items, nil
}

// CollectPages paginates a 1-based page-number endpoint.
func CollectPages(fetch NumberedFetch, itemsKey string, opts PageOptions) ([]Record, error) {
	opts = opts.withDefaults()
	var items []Record
	seen := make(map[string]bool)

	for page := 1; page <= opts.MaxPages; page++ {
		resp, err := fetch(page, opts.PageSize)
		if err != nil {
			return items, err
		}
		batch := resp.List(itemsKey)
		if len(batch) == 0 {
			break
		}
		if appendNew(&items, seen, batch) == 0 {
			break
		}
		if total, ok := resp.Total(); ok && len(items) >= total {
			break
		}
	}
	return items, nil
}

// appendNew appends records not seen before (by remote ID) and reports how
// many were new. Records without an ID are kept but cannot be deduplicated.
func appendNew(items *[]Record, seen map[string]bool, batch []Record) int {
	added := 0
	for _, rec := range batch {
		id := rec.ID()
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		*items = append(*items, rec)
		added++
	}
	return added
}
