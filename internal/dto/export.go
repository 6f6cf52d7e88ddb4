package dto

import "github.com/noah-isme/filemgr/internal/models"

// ExportRequest captures the POST /exports payload.
type ExportRequest struct {
	ProductType string              `json:"productType" validate:"required"`
	Query       string              `json:"query,omitempty"`
	Format      models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Delimiter   string              `json:"delimiter,omitempty"`
	Fields      []string            `json:"fields,omitempty" validate:"omitempty,dive,required"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
