package dto

// CreateProductTypeRequest registers a product type and provisions its tables.
type CreateProductTypeRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name" validate:"required,max=100,identifier"`
	Description    string `json:"description,omitempty"`
	RepositoryPath string `json:"repositoryPath,omitempty"`
	Versioner      string `json:"versioner,omitempty"`
	Parent         string `json:"parent,omitempty"`
}

// ElementRequest creates or updates an element.
type ElementRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name" validate:"required,max=255"`
	DCElement   string `json:"dcElement,omitempty"`
	Description string `json:"description,omitempty"`
}

// MapElementRequest attaches an existing element to a product type.
type MapElementRequest struct {
	ElementID   string `json:"elementId" validate:"required_without=ElementName"`
	ElementName string `json:"elementName" validate:"required_without=ElementID"`
}

// SetParentRequest makes Parent the super type of a product type.
type SetParentRequest struct {
	Parent string `json:"parent" validate:"required"`
}
