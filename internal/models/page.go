package models

// ProductPage is one page of a paged catalog query.
type ProductPage struct {
	PageNum    int        `json:"page_num"`
	TotalPages int        `json:"total_pages"`
	PageSize   int        `json:"page_size"`
	NumOfHits  int        `json:"num_of_hits"`
	Products   []*Product `json:"products"`
}

// BlankPage is the zero-result sentinel.
func BlankPage() *ProductPage {
	return &ProductPage{Products: []*Product{}}
}

// IsLastPage reports whether this is the final page.
func (p *ProductPage) IsLastPage() bool {
	return p.PageNum == p.TotalPages
}

// IsFirstPage reports whether this is page 1.
func (p *ProductPage) IsFirstPage() bool {
	return p.PageNum == 1
}

// IsBlank reports whether p is the zero-result sentinel.
func (p *ProductPage) IsBlank() bool {
	return p.PageNum == 0 && p.TotalPages == 0 && len(p.Products) == 0
}

// ProductIDs returns the ids of the page's products in order.
func (p *ProductPage) ProductIDs() []string {
	ids := make([]string, 0, len(p.Products))
	for _, prod := range p.Products {
		ids = append(ids, prod.ID)
	}
	return ids
}
