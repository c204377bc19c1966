package cmd

// paginate returns one page of items, the total count, and the effective
// page number. A limit <= 0 returns everything.
func paginate[T any](items []T, page, limit int) ([]T, int, int) {
	total := len(items)
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return items, total, page
	}

	start := (page - 1) * limit
	end := start + limit

	if start >= total {
		return []T{}, total, page
	}
	if end > total {
		end = total
	}

	return items[start:end], total, page
}
