package models

import "time"

// ProductStructure describes how a product's files are laid out.
type ProductStructure string

const (
	StructureFlat         ProductStructure = "FLAT"
	StructureHierarchical ProductStructure = "HIERARCHICAL"
	StructureStream       ProductStructure = "STREAM"
)

// Valid reports whether s is a known structure.
func (s ProductStructure) Valid() bool {
	switch s {
	case StructureFlat, StructureHierarchical, StructureStream:
		return true
	}
	return false
}

// TransferStatus tracks file transfer progress for a product.
type TransferStatus string

const (
	TransferNone       TransferStatus = "NONE"
	TransferInProgress TransferStatus = "IN_PROGRESS"
	TransferDone       TransferStatus = "DONE"
	TransferPartial    TransferStatus = "PARTIAL"
)

// Valid reports whether s is a known transfer status.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferNone, TransferInProgress, TransferDone, TransferPartial:
		return true
	}
	return false
}

// Product is an ingested data product.
type Product struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Type           *ProductType     `json:"type,omitempty"`
	Structure      ProductStructure `json:"structure"`
	TransferStatus TransferStatus   `json:"transfer_status"`
	References     []Reference      `json:"references,omitempty"`
	ReceivedAt     time.Time        `json:"received_at"`
}

// TypeID returns the product type id or "" when the type is unset.
func (p *Product) TypeID() string {
	if p == nil || p.Type == nil {
		return ""
	}
	return p.Type.ID
}

// ProductRow mirrors the products table.
type ProductRow struct {
	ID             string    `db:"product_id"`
	Name           string    `db:"product_name"`
	TypeID         string    `db:"product_type_id"`
	Structure      string    `db:"product_structure"`
	TransferStatus string    `db:"product_transfer_status"`
	ReceivedAt     time.Time `db:"product_datetime"`
}

// ToProduct converts the row into a Product carrying a type stub with only
// the id set.
func (r ProductRow) ToProduct() *Product {
	return &Product{
		ID:             r.ID,
		Name:           r.Name,
		Type:           &ProductType{ID: r.TypeID},
		Structure:      ProductStructure(r.Structure),
		TransferStatus: TransferStatus(r.TransferStatus),
		ReceivedAt:     r.ReceivedAt,
	}
}

// Reference points at one file belonging to a product.
type Reference struct {
	OrigReference      string `db:"product_orig_reference" json:"orig_reference" validate:"required"`
	DataStoreReference string `db:"product_datastore_reference" json:"datastore_reference"`
	FileSize           int64  `db:"product_reference_filesize" json:"file_size"`
	MimeType           string `db:"product_reference_mimetype" json:"mime_type,omitempty"`
	// BytesTransferred is tracked by the transfer layer and never persisted.
	BytesTransferred int64 `db:"-" json:"bytes_transferred,omitempty"`
}
