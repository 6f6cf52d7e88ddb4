package models

// Pagination is the envelope-level paging summary returned by list endpoints.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// PaginationFromPage summarises a ProductPage.
func PaginationFromPage(p *ProductPage) *Pagination {
	if p == nil {
		return nil
	}
	return &Pagination{Page: p.PageNum, PageSize: p.PageSize, TotalCount: p.NumOfHits, TotalPages: p.TotalPages}
}
