package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/filemgr/internal/dto"
	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/internal/query"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
	"github.com/noah-isme/filemgr/pkg/logger"
)

type catalogEngine interface {
	AddProduct(ctx context.Context, p *models.Product) error
	AddProductReferences(ctx context.Context, p *models.Product) error
	AddMetadata(ctx context.Context, m *models.Metadata, p *models.Product) error
	RemoveProduct(ctx context.Context, p *models.Product) error
	SetProductTransferStatus(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductByName(ctx context.Context, name string) (*models.Product, error)
	GetProductReferences(ctx context.Context, p *models.Product) ([]models.Reference, error)
	GetMetadata(ctx context.Context, p *models.Product) (*models.Metadata, error)
	GetReducedMetadata(ctx context.Context, p *models.Product, elementNames []string) (*models.Metadata, error)
	Query(ctx context.Context, q *query.Query, typ *models.ProductType) ([]string, error)
	NumHits(ctx context.Context, q *query.Query, typ *models.ProductType) (int, error)
	PagedQuery(ctx context.Context, q *query.Query, typ *models.ProductType, pageNum int) (*models.ProductPage, error)
}

type productTypeReader interface {
	GetByID(ctx context.Context, id string) (*models.ProductType, error)
	GetByName(ctx context.Context, name string) (*models.ProductType, error)
}

type pageCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, patterns ...string) error
}

// CatalogService is the product facade used by the HTTP API and the admin
// CLI. Paged query results and hit counts are cached per product type and
// dropped whenever a product of that type changes.
type CatalogService struct {
	catalog   catalogEngine
	types     productTypeReader
	cache     pageCache
	metrics   *MetricsService
	validator *validator.Validate
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewCatalogService constructs the service. cache and metrics may be nil.
func NewCatalogService(catalog catalogEngine, types productTypeReader, cache pageCache, metrics *MetricsService, validate *validator.Validate, cacheTTL time.Duration, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		catalog:   catalog,
		types:     types,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Ingest stores a product, its references and its metadata. A failure after
// the product row exists removes the partial product again.
func (s *CatalogService) Ingest(ctx context.Context, req dto.IngestRequest) (product *models.Product, err error) {
	defer s.observe("ingest", time.Now(), &err)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ingest payload")
	}
	typ, err := s.productType(ctx, req.ProductType)
	if err != nil {
		return nil, err
	}
	product = &models.Product{
		ID:             req.ID,
		Name:           req.Name,
		Type:           typ,
		Structure:      req.Structure,
		TransferStatus: req.TransferStatus,
		References:     req.References,
	}
	if req.ReceivedAt != nil {
		product.ReceivedAt = req.ReceivedAt.UTC()
	}
	if err := s.catalog.AddProduct(ctx, product); err != nil {
		return nil, err
	}
	if err := s.finishIngest(ctx, product, req.Metadata); err != nil {
		if rmErr := s.catalog.RemoveProduct(ctx, product); rmErr != nil {
			logger.ForContext(ctx, s.logger).Sugar().Errorw("failed to remove partially ingested product", "product_id", product.ID, "error", rmErr)
		}
		return nil, err
	}
	s.invalidate(ctx, typ.Name)
	logger.ForContext(ctx, s.logger).Sugar().Infow("product ingested", "product_id", product.ID, "product_type", typ.Name,
		"references", len(product.References), "metadata_keys", req.Metadata.Len())
	return product, nil
}

func (s *CatalogService) finishIngest(ctx context.Context, product *models.Product, metadata *models.Metadata) error {
	if len(product.References) > 0 {
		if err := s.catalog.AddProductReferences(ctx, product); err != nil {
			return err
		}
	}
	if metadata.Len() > 0 {
		if err := s.catalog.AddMetadata(ctx, metadata, product); err != nil {
			return err
		}
	}
	return nil
}

// GetProduct returns the product with id.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.catalog.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "product %s not found", id)
	}
	return product, nil
}

// GetProductByName returns the most recently received product named name.
func (s *CatalogService) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	product, err := s.catalog.GetProductByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "product %s not found", name)
	}
	return product, nil
}

// RemoveProduct deletes a product with its metadata and references.
func (s *CatalogService) RemoveProduct(ctx context.Context, id string) (err error) {
	defer s.observe("remove_product", time.Now(), &err)
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.catalog.RemoveProduct(ctx, product); err != nil {
		return err
	}
	s.invalidate(ctx, typeNameOf(product))
	return nil
}

// SetTransferStatus updates the transfer status of a product.
func (s *CatalogService) SetTransferStatus(ctx context.Context, id string, req dto.TransferStatusRequest) (*models.Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer status")
	}
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product.TransferStatus = req.Status
	if err := s.catalog.SetProductTransferStatus(ctx, product); err != nil {
		return nil, err
	}
	s.invalidate(ctx, typeNameOf(product))
	return product, nil
}

// GetMetadata returns the metadata of a product, restricted to elements when
// any are given.
func (s *CatalogService) GetMetadata(ctx context.Context, id string, elements []string) (*models.Metadata, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		return s.catalog.GetReducedMetadata(ctx, product, elements)
	}
	return s.catalog.GetMetadata(ctx, product)
}

// GetReferences lists the file references of a product.
func (s *CatalogService) GetReferences(ctx context.Context, id string) ([]models.Reference, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.catalog.GetProductReferences(ctx, product)
}

// PagedQuery runs expr against typeName and returns page pageNum.
func (s *CatalogService) PagedQuery(ctx context.Context, typeName, expr string, pageNum int) (page *models.ProductPage, err error) {
	defer s.observe("paged_query", time.Now(), &err)
	typ, q, err := s.prepare(ctx, typeName, expr)
	if err != nil {
		return nil, err
	}
	if pageNum < 1 {
		pageNum = 1
	}
	key := ResultKey(CacheKindPage, typ.Name, q.String(), pageNum)
	return readThrough(ctx, s.cache, key, s.cacheTTL, func() (*models.ProductPage, error) {
		result, err := s.catalog.PagedQuery(ctx, q, typ, pageNum)
		if err != nil {
			return nil, err
		}
		s.metrics.ObservePageHits(result.NumOfHits)
		return result, nil
	})
}

// Count returns the number of products of typeName matching expr.
func (s *CatalogService) Count(ctx context.Context, typeName, expr string) (count int, err error) {
	defer s.observe("count", time.Now(), &err)
	typ, q, err := s.prepare(ctx, typeName, expr)
	if err != nil {
		return 0, err
	}
	key := ResultKey(CacheKindCount, typ.Name, q.String(), 0)
	return readThrough(ctx, s.cache, key, s.cacheTTL, func() (int, error) {
		return s.catalog.NumHits(ctx, q, typ)
	})
}

// QueryIDs returns every product id of typeName matching expr.
func (s *CatalogService) QueryIDs(ctx context.Context, typeName, expr string) (ids []string, err error) {
	defer s.observe("query", time.Now(), &err)
	typ, q, err := s.prepare(ctx, typeName, expr)
	if err != nil {
		return nil, err
	}
	return s.catalog.Query(ctx, q, typ)
}

func (s *CatalogService) prepare(ctx context.Context, typeName, expr string) (*models.ProductType, *query.Query, error) {
	q, err := query.Parse(expr)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query expression")
	}
	typ, err := s.productType(ctx, typeName)
	if err != nil {
		return nil, nil, err
	}
	return typ, q, nil
}

func (s *CatalogService) productType(ctx context.Context, name string) (*models.ProductType, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "product type is required")
	}
	typ, err := s.types.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", name)
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load product type %s", name)
	}
	return typ, nil
}

func (s *CatalogService) invalidate(ctx context.Context, typeName string) {
	if s.cache == nil || typeName == "" {
		return
	}
	_ = s.cache.Invalidate(ctx, TypeScope(typeName)...)
}

func (s *CatalogService) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveCatalogOperation(op, *err, time.Since(start))
}

func typeNameOf(p *models.Product) string {
	if p == nil || p.Type == nil {
		return ""
	}
	return p.Type.Name
}
