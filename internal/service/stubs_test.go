package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/internal/query"
	"github.com/noah-isme/filemgr/internal/repository"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
	"github.com/noah-isme/filemgr/pkg/jobs"
)

type catalogStub struct {
	products   map[string]*models.Product
	metadata   map[string]*models.Metadata
	references map[string][]models.Reference
	queryIDs   []string
	page       *models.ProductPage
	hits       int

	addErr      error
	refErr      error
	metadataErr error
	queryErr    error

	removed     []string
	pagedCalls  int
	countCalls  int
	lastQuery   *query.Query
	lastPageNum int
}

func newCatalogStub() *catalogStub {
	return &catalogStub{
		products:   map[string]*models.Product{},
		metadata:   map[string]*models.Metadata{},
		references: map[string][]models.Reference{},
	}
}

func (s *catalogStub) AddProduct(ctx context.Context, p *models.Product) error {
	if s.addErr != nil {
		return s.addErr
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("p%d", len(s.products)+1)
	}
	s.products[p.ID] = p
	return nil
}

func (s *catalogStub) AddProductReferences(ctx context.Context, p *models.Product) error {
	if s.refErr != nil {
		return s.refErr
	}
	s.references[p.ID] = append(s.references[p.ID], p.References...)
	return nil
}

func (s *catalogStub) AddMetadata(ctx context.Context, m *models.Metadata, p *models.Product) error {
	if s.metadataErr != nil {
		return s.metadataErr
	}
	s.metadata[p.ID] = m
	return nil
}

func (s *catalogStub) RemoveProduct(ctx context.Context, p *models.Product) error {
	s.removed = append(s.removed, p.ID)
	delete(s.products, p.ID)
	return nil
}

func (s *catalogStub) SetProductTransferStatus(ctx context.Context, p *models.Product) error {
	s.products[p.ID] = p
	return nil
}

func (s *catalogStub) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.products[id], nil
}

func (s *catalogStub) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	for _, p := range s.products {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (s *catalogStub) GetProductReferences(ctx context.Context, p *models.Product) ([]models.Reference, error) {
	return s.references[p.ID], nil
}

func (s *catalogStub) GetMetadata(ctx context.Context, p *models.Product) (*models.Metadata, error) {
	if md, ok := s.metadata[p.ID]; ok {
		return md, nil
	}
	return models.NewMetadata(), nil
}

func (s *catalogStub) GetReducedMetadata(ctx context.Context, p *models.Product, names []string) (*models.Metadata, error) {
	out := models.NewMetadata()
	md := s.metadata[p.ID]
	for _, n := range names {
		if md.Has(n) {
			out.Add(n, md.Values(n)...)
		}
	}
	return out, nil
}

func (s *catalogStub) Query(ctx context.Context, q *query.Query, typ *models.ProductType) ([]string, error) {
	s.lastQuery = q
	return s.queryIDs, s.queryErr
}

func (s *catalogStub) NumHits(ctx context.Context, q *query.Query, typ *models.ProductType) (int, error) {
	s.countCalls++
	s.lastQuery = q
	return s.hits, s.queryErr
}

func (s *catalogStub) PagedQuery(ctx context.Context, q *query.Query, typ *models.ProductType, pageNum int) (*models.ProductPage, error) {
	s.pagedCalls++
	s.lastQuery = q
	s.lastPageNum = pageNum
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.page, nil
}

type typeStoreStub struct {
	types     map[string]*models.ProductType
	created   []*models.ProductType
	createErr error
}

func newTypeStoreStub(types ...*models.ProductType) *typeStoreStub {
	s := &typeStoreStub{types: map[string]*models.ProductType{}}
	for _, t := range types {
		s.types[t.Name] = t
	}
	return s
}

func (s *typeStoreStub) GetByID(ctx context.Context, id string) (*models.ProductType, error) {
	for _, t := range s.types {
		if t.ID == id {
			clone := *t
			return &clone, nil
		}
	}
	return nil, appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", id)
}

func (s *typeStoreStub) GetByName(ctx context.Context, name string) (*models.ProductType, error) {
	if t, ok := s.types[name]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", name)
}

func (s *typeStoreStub) Create(ctx context.Context, typ *models.ProductType) error {
	if s.createErr != nil {
		return s.createErr
	}
	if typ.ID == "" {
		typ.ID = "urn:" + typ.Name
	}
	s.created = append(s.created, typ)
	s.types[typ.Name] = typ
	return nil
}

func (s *typeStoreStub) List(ctx context.Context) ([]models.ProductType, error) {
	out := make([]models.ProductType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// cacheStub is an in-memory pageCache that stores values by reference.
type cacheStub struct {
	mu          sync.Mutex
	entries     map[string]interface{}
	invalidated []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: map[string]interface{}{}}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	switch d := dest.(type) {
	case **models.ProductPage:
		page := *(v.(*models.ProductPage))
		*d = &page
	case *int:
		*d = v.(int)
	default:
		return false, fmt.Errorf("unsupported dest %T", dest)
	}
	return true, nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *cacheStub) Invalidate(ctx context.Context, patterns ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pattern := range patterns {
		c.invalidated = append(c.invalidated, pattern)
		prefix := strings.TrimSuffix(pattern, "*")
		for k := range c.entries {
			if strings.HasPrefix(k, prefix) {
				delete(c.entries, k)
			}
		}
	}
	return nil
}

type exportJobStoreStub struct {
	mu       sync.Mutex
	jobs     map[string]*models.ExportJob
	updates  []repository.UpdateExportJobParams
	queued   []models.ExportJob
	finished []models.ExportJob
}

func newExportJobStoreStub() *exportJobStoreStub {
	return &exportJobStoreStub{jobs: map[string]*models.ExportJob{}}
}

func (s *exportJobStoreStub) Create(ctx context.Context, job *models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", len(s.jobs)+1)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *exportJobStoreStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "export job %s not found", id)
	}
	clone := *job
	return &clone, nil
}

func (s *exportJobStoreStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return appErrors.ErrNotFound
	}
	s.updates = append(s.updates, params)
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		job.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *exportJobStoreStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	return s.queued, nil
}

func (s *exportJobStoreStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return s.finished, nil
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}
