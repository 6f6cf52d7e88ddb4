package models

// ProductType groups products that share a metadata schema and storage
// tables.
type ProductType struct {
	ID             string `db:"product_type_id" json:"id"`
	Name           string `db:"product_type_name" json:"name" validate:"required"`
	Description    string `db:"product_type_description" json:"description,omitempty"`
	RepositoryPath string `db:"product_type_repository_path" json:"repository_path,omitempty"`
	Versioner      string `db:"product_type_versioner" json:"versioner,omitempty"`
	ParentID       string `db:"-" json:"parent_id,omitempty"`
}
