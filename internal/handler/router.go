package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups everything mounted by Register.
type Handlers struct {
	Products *ProductHandler
	Schema   *SchemaHandler
	Exports  *ExportHandler
	Metrics  *MetricsHandler
}

// Register mounts the catalog API under prefix and the health and metrics
// endpoints at the root.
func Register(r *gin.Engine, prefix string, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	if h.Metrics != nil {
		api.GET("/metrics/snapshot", h.Metrics.Snapshot)
	}

	if p := h.Products; p != nil {
		products := api.Group("/products")
		products.POST("", p.Ingest)
		products.GET("/by-name/:name", p.GetByName)
		products.GET("/:id", p.Get)
		products.DELETE("/:id", p.Delete)
		products.PATCH("/:id/transfer-status", p.SetTransferStatus)
		products.GET("/:id/metadata", p.Metadata)
		products.GET("/:id/references", p.References)

		api.GET("/types/:name/products", p.List)
		api.GET("/types/:name/count", p.Count)
		api.POST("/types/:name/query", p.Query)
	}

	if s := h.Schema; s != nil {
		types := api.Group("/types")
		types.POST("", s.CreateType)
		types.GET("", s.ListTypes)
		types.GET("/:name", s.GetType)
		types.GET("/:name/elements", s.TypeElements)
		types.POST("/:name/elements", s.MapElement)
		types.DELETE("/:name/elements/:elementId", s.UnmapElement)
		types.PUT("/:name/parent", s.SetParent)
		types.DELETE("/:name/parent", s.RemoveParent)

		elements := api.Group("/elements")
		elements.POST("", s.CreateElement)
		elements.GET("", s.ListElements)
		elements.GET("/:name", s.GetElement)
		elements.PUT("/:id", s.UpdateElement)
		elements.DELETE("/:id", s.DeleteElement)
	}

	if e := h.Exports; e != nil {
		exports := api.Group("/exports")
		exports.POST("", e.Create)
		exports.GET("/download/:token", e.Download)
		exports.GET("/:id", e.Status)
	}
}
