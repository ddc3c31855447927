package api

// PaginationMeta describes one page of a list response.
type PaginationMeta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// parsePagination normalizes limit/offset query params.
// limit=50, offset=0. limit capped at 100, minimum 1.
// offset min 0
func parsePagination(limit, offset *int) (int64, int64) {
	l := int64(50)
	o := int64(0)
	if limit != nil {
		l = int64(*limit)
	}
	if offset != nil {
		o = int64(*offset)
	}
	if l > 100 {
		l = 100
	}
	if l < 1 {
		l = 1
	}
	if o < 0 {
		o = 0
	}
	return l, o
}

func buildPaginationMeta(total, limit, offset int64) PaginationMeta {
	return PaginationMeta{
		Total:   int(total),
		Limit:   int(limit),
		Offset:  int(offset),
		HasMore: offset+limit < total,
	}
}

// page slices items in memory. Stores return whole result sets.
func page[T any](items []T, limit, offset int64) []T {
	n := int64(len(items))
	if offset >= n {
		return []T{}
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return items[offset:end]
}
