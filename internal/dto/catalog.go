package dto

import (
	"time"

	"github.com/noah-isme/filemgr/internal/models"
)

// IngestRequest captures the POST /products payload: the product row, its
// file references and its metadata, stored in that order.
type IngestRequest struct {
	ID             string                  `json:"id,omitempty"`
	Name           string                  `json:"name" validate:"required,max=255"`
	ProductType    string                  `json:"productType" validate:"required"`
	Structure      models.ProductStructure `json:"structure,omitempty" validate:"omitempty,oneof=FLAT HIERARCHICAL STREAM"`
	TransferStatus models.TransferStatus   `json:"transferStatus,omitempty" validate:"omitempty,oneof=NONE IN_PROGRESS DONE PARTIAL"`
	ReceivedAt     *time.Time              `json:"receivedAt,omitempty"`
	References     []models.Reference      `json:"references,omitempty" validate:"dive"`
	Metadata       *models.Metadata        `json:"metadata,omitempty"`
}

// TransferStatusRequest updates a product's transfer status.
type TransferStatusRequest struct {
	Status models.TransferStatus `json:"status" validate:"required,oneof=NONE IN_PROGRESS DONE PARTIAL"`
}

// QueryRequest carries a query expression for POST /types/:name/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse lists the ids matched by a query, newest first.
type QueryResponse struct {
	ProductType string   `json:"productType"`
	Query       string   `json:"query"`
	ProductIDs  []string `json:"productIds"`
}

// CountResponse reports the number of products matching a query.
type CountResponse struct {
	ProductType string `json:"productType"`
	Query       string `json:"query"`
	Count       int    `json:"count"`
}
