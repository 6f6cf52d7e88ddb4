package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/internal/query"
	"github.com/noah-isme/filemgr/pkg/export"
	"github.com/noah-isme/filemgr/pkg/storage"
)

// Fixed leading columns of an export.
const (
	ColumnProductID   = "ProductId"
	ColumnProductName = "ProductName"
	ColumnReceived    = "ProductReceivedTime"
)

// valueSeparator joins multiple values of one element in a cell.
const valueSeparator = " | "

type exportCatalog interface {
	Query(ctx context.Context, q *query.Query, typ *models.ProductType) ([]string, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetMetadata(ctx context.Context, p *models.Product) (*models.Metadata, error)
	GetReducedMetadata(ctx context.Context, p *models.Product, elementNames []string) (*models.Metadata, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	RenderDelimited(data export.Dataset, comma rune) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	// MaxRows caps the number of products written to one file.
	MaxRows int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	Rows         int
	ExpiresAt    time.Time
}

// ExportService runs catalog queries and persists the rendered results.
type ExportService struct {
	catalog exportCatalog
	types   productTypeReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the defaults of pkg/export.
func NewExportService(catalog exportCatalog, types productTypeReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		catalog: catalog,
		types:   types,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate runs the job's query, renders the rows and stores the file behind
// a signed download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, err := s.BuildDataset(ctx, job.Params)
	if err != nil {
		return nil, err
	}
	payload, err := s.Render(dataset, job.Params)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Sugar().Infow("export generated", "job_id", job.ID, "rows", len(dataset.Rows), "path", relPath)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		Rows:         len(dataset.Rows),
		ExpiresAt:    expiresAt,
	}, nil
}

// Render encodes dataset in the format requested by params.
func (s *ExportService) Render(dataset export.Dataset, params models.ExportJobParams) ([]byte, error) {
	switch params.Format {
	case models.ExportFormatCSV, "":
		comma, err := export.ParseDelimiter(params.Delimiter)
		if err != nil {
			return nil, err
		}
		return s.csv.RenderDelimited(dataset, comma)
	case models.ExportFormatPDF:
		title := fmt.Sprintf("%s products", params.ProductType)
		if params.Query != "" {
			title += " where " + params.Query
		}
		return s.pdf.Render(dataset, title)
	default:
		return nil, fmt.Errorf("unsupported format %s", params.Format)
	}
}

// BuildDataset queries the catalog and lays the matching products out as
// rows. Without explicit fields the columns are every element seen, in
// first-seen order.
func (s *ExportService) BuildDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, error) {
	typ, err := s.types.GetByName(ctx, params.ProductType)
	if err != nil {
		return export.Dataset{}, err
	}
	q, err := query.Parse(params.Query)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("parse export query: %w", err)
	}
	ids, err := s.catalog.Query(ctx, q, typ)
	if err != nil {
		return export.Dataset{}, err
	}
	if len(ids) > s.cfg.MaxRows {
		s.logger.Sugar().Warnw("export truncated", "product_type", typ.Name, "hits", len(ids), "max_rows", s.cfg.MaxRows)
		ids = ids[:s.cfg.MaxRows]
	}

	columns := append([]string(nil), params.Fields...)
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		seen[c] = struct{}{}
	}

	rows := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		product, err := s.catalog.GetProductByID(ctx, id)
		if err != nil {
			return export.Dataset{}, err
		}
		if product == nil {
			continue
		}
		var md *models.Metadata
		if len(params.Fields) > 0 {
			md, err = s.catalog.GetReducedMetadata(ctx, product, params.Fields)
		} else {
			md, err = s.catalog.GetMetadata(ctx, product)
		}
		if err != nil {
			return export.Dataset{}, err
		}

		row := map[string]string{
			ColumnProductID:   product.ID,
			ColumnProductName: product.Name,
			ColumnReceived:    product.ReceivedAt.UTC().Format(time.RFC3339),
		}
		for _, key := range md.Keys() {
			row[key] = strings.Join(md.Values(key), valueSeparator)
			if len(params.Fields) == 0 {
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					columns = append(columns, key)
				}
			}
		}
		rows = append(rows, row)
	}

	headers := append([]string{ColumnProductID, ColumnProductName, ColumnReceived}, columns...)
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.Grant, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl
// is not positive.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	id := job.ID
	if len(id) > 8 {
		id = id[:8]
	}
	format := job.Params.Format
	if format == "" {
		format = models.ExportFormatCSV
	}
	return fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(strings.ToLower(job.Params.ProductType)), timestamp, id, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
