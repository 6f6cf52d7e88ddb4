// Package pagination holds the page arithmetic shared by the catalog and
// its callers.
package pagination

// TotalPages returns ceil(resultSize/pageSize). A result size of zero yields
// zero pages, which callers use to skip the data query entirely.
func TotalPages(resultSize, pageSize int) int {
	if resultSize <= 0 || pageSize <= 0 {
		return 0
	}
	pages := resultSize / pageSize
	if resultSize%pageSize != 0 {
		pages++
	}
	return pages
}

// Offset returns the number of rows to skip for pageNum. The offset is
// clamped to 0 when pageNum is below 1 or would skip past resultSize.
func Offset(pageNum, pageSize, resultSize int) int {
	if pageNum < 1 || pageSize <= 0 {
		return 0
	}
	skip := (pageNum - 1) * pageSize
	if skip > resultSize {
		return 0
	}
	return skip
}
