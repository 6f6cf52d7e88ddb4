package models

// Element is a metadata element a product type may carry.
type Element struct {
	ID          string `db:"element_id" json:"id"`
	Name        string `db:"element_name" json:"name" validate:"required"`
	DCElement   string `db:"dc_element" json:"dc_element,omitempty"`
	Description string `db:"element_description" json:"description,omitempty"`
}

// ElementNames returns the names of elems in order.
func ElementNames(elems []Element) []string {
	names := make([]string, 0, len(elems))
	for _, e := range elems {
		names = append(names, e.Name)
	}
	return names
}
