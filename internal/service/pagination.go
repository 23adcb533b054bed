package service

// normalizePage clamps paging input to 1 ≤ page and 1 ≤ perPage ≤ 100.
func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
