// Package memrepo keeps documents, payments and delivery logs in memory.
// Domain tests run against it; it copies values in and out, checks versions
// and reports missing rows the way the postgres repositories do.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/catalogs/project"
	"docflow/internal/domain/delivery"
	"docflow/internal/domain/documents"
)

// Store holds documents, items, payments and delivery logs.
type Store struct {
	mu       sync.Mutex
	docs     map[id.ID]documents.Document
	items    map[id.ID][]documents.Item
	payments map[id.ID]documents.Payment
	logs     []delivery.Log
	order    []id.ID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		docs:     make(map[id.ID]documents.Document),
		items:    make(map[id.ID][]documents.Item),
		payments: make(map[id.ID]documents.Payment),
	}
}

var (
	_ documents.Repository        = (*Store)(nil)
	_ documents.PaymentRepository = (*Payments)(nil)
	_ delivery.Repository         = (*Store)(nil)
)

func clone(d documents.Document) *documents.Document {
	cp := d
	cp.Items = nil
	return &cp
}

// Create implements documents.Repository.
func (s *Store) Create(_ context.Context, doc *documents.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return apperror.NewConflict("document already exists")
	}
	for _, d := range s.docs {
		if d.Number == doc.Number {
			return apperror.NewConflict("document number already exists").WithDetail("number", doc.Number)
		}
	}
	stored := *doc
	stored.Items = nil
	s.docs[doc.ID] = stored
	s.order = append(s.order, doc.ID)
	return nil
}

// Update implements documents.Repository.
func (s *Store) Update(_ context.Context, doc *documents.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.docs[doc.ID]
	if !ok {
		return apperror.NewNotFound("document", doc.ID.String())
	}
	if current.Version != doc.Version {
		return apperror.NewConcurrentModification("document", doc.ID.String())
	}
	doc.Version++
	stored := *doc
	stored.Items = nil
	s.docs[doc.ID] = stored
	return nil
}

// GetByID implements documents.Repository.
func (s *Store) GetByID(_ context.Context, docID id.ID) (*documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	return clone(d), nil
}

// GetForUpdate implements documents.Repository. The store is not
// transactional; the mutex only guards the maps.
func (s *Store) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return s.GetByID(ctx, docID)
}

// Delete implements documents.Repository.
func (s *Store) Delete(_ context.Context, docID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return apperror.NewNotFound("document", docID.String())
	}
	delete(s.docs, docID)
	delete(s.items, docID)
	for pid, p := range s.payments {
		if p.DocumentID == docID {
			delete(s.payments, pid)
		}
	}
	return nil
}

// List implements documents.Repository.
func (s *Store) List(_ context.Context, f documents.ListFilter) (documents.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*documents.Document
	for _, docID := range s.order {
		d, ok := s.docs[docID]
		if !ok || !matches(d, f) {
			continue
		}
		matched = append(matched, clone(d))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	res := documents.ListResult{TotalCount: int64(len(matched)), Limit: f.Limit, Offset: f.Offset}
	start := min(f.Offset, len(matched))
	end := len(matched)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(matched))
	}
	res.Items = matched[start:end]
	if res.Items == nil {
		res.Items = []*documents.Document{}
	}
	return res, nil
}

func matches(d documents.Document, f documents.ListFilter) bool {
	if f.Type != nil && d.Type != *f.Type {
		return false
	}
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.ClientID != nil && (d.ClientID == nil || *d.ClientID != *f.ClientID) {
		return false
	}
	if f.ProjectID != nil && (d.ProjectID == nil || *d.ProjectID != *f.ProjectID) {
		return false
	}
	if f.DateFrom != nil && d.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && d.Date.After(*f.DateTo) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		name := ""
		if d.ClientName != nil {
			name = *d.ClientName
		}
		if !strings.Contains(strings.ToLower(d.Number), q) && !strings.Contains(strings.ToLower(name), q) {
			return false
		}
	}
	return true
}

// GetItems implements documents.Repository.
func (s *Store) GetItems(_ context.Context, docID id.ID) ([]documents.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.items[docID]
	out := make([]documents.Item, len(src))
	copy(out, src)
	return out, nil
}

// SaveItems implements documents.Repository.
func (s *Store) SaveItems(_ context.Context, docID id.ID, items []documents.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]documents.Item, len(items))
	for i, it := range items {
		it.DocumentID = docID
		it.Position = i
		out[i] = it
	}
	s.items[docID] = out
	return nil
}

// ListChildren implements documents.Repository.
func (s *Store) ListChildren(_ context.Context, parentID id.ID) ([]*documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*documents.Document
	for _, docID := range s.order {
		d, ok := s.docs[docID]
		if ok && d.ParentID != nil && *d.ParentID == parentID {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

// CountChildren implements documents.Repository.
func (s *Store) CountChildren(ctx context.Context, docID id.ID) (int, error) {
	children, err := s.ListChildren(ctx, docID)
	return len(children), err
}

// ListDeliveredLines implements delivery.Repository.
func (s *Store) ListDeliveredLines(_ context.Context, orderID id.ID) ([]delivery.DeliveredLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []delivery.DeliveredLine
	for _, docID := range s.order {
		d, ok := s.docs[docID]
		if !ok || d.Type != documents.TypeDeliveryNote || d.ParentID == nil || *d.ParentID != orderID {
			continue
		}
		for _, it := range s.items[docID] {
			if it.SourceOrderItemID == nil {
				continue
			}
			out = append(out, delivery.DeliveredLine{
				DeliveryNoteID:    d.ID,
				Number:            d.Number,
				Status:            d.Status,
				Date:              d.Date,
				ReceivedBy:        d.ReceivedBy,
				SourceOrderItemID: *it.SourceOrderItemID,
				Quantity:          it.Quantity,
			})
		}
	}
	return out, nil
}

// CreateLog implements delivery.Repository.
func (s *Store) CreateLog(_ context.Context, log *delivery.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

// ListLogs implements delivery.Repository.
func (s *Store) ListLogs(_ context.Context, orderID id.ID) ([]delivery.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []delivery.Log
	for _, l := range s.logs {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ListDepositInvoices implements billing.Repository.
func (s *Store) ListDepositInvoices(_ context.Context, quoteID id.ID) ([]*documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*documents.Document
	for _, docID := range s.order {
		d, ok := s.docs[docID]
		if ok && d.Type == documents.TypeDepositInvoice && d.LinkedQuoteID != nil && *d.LinkedQuoteID == quoteID {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

// Payments returns the payment repository view of the store.
func (s *Store) Payments() *Payments {
	return &Payments{s: s}
}

// Payments implements documents.PaymentRepository over a Store.
type Payments struct {
	s *Store
}

// Create implements documents.PaymentRepository.
func (p *Payments) Create(_ context.Context, pay *documents.Payment) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.payments[pay.ID] = *pay
	return nil
}

// GetByID implements documents.PaymentRepository.
func (p *Payments) GetByID(_ context.Context, paymentID id.ID) (*documents.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	pay, ok := p.s.payments[paymentID]
	if !ok {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	return &pay, nil
}

// Delete implements documents.PaymentRepository.
func (p *Payments) Delete(_ context.Context, paymentID id.ID) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.payments[paymentID]; !ok {
		return apperror.NewNotFound("payment", paymentID.String())
	}
	delete(p.s.payments, paymentID)
	return nil
}

// ListByDocument implements documents.PaymentRepository.
func (p *Payments) ListByDocument(_ context.Context, docID id.ID) ([]documents.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []documents.Payment
	for _, pay := range p.s.payments {
		if pay.DocumentID == docID {
			out = append(out, pay)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

// CountByDocument implements documents.PaymentRepository.
func (p *Payments) CountByDocument(ctx context.Context, docID id.ID) (int, error) {
	list, err := p.ListByDocument(ctx, docID)
	return len(list), err
}

// Catalog resolves clients and projects from maps.
type Catalog struct {
	Clients  map[id.ID]*client.Client
	Projects map[id.ID]*project.Project
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Clients:  make(map[id.ID]*client.Client),
		Projects: make(map[id.ID]*project.Project),
	}
}

// AddClient registers a client and returns it.
func (c *Catalog) AddClient(name string) *client.Client {
	cl := client.NewClient(name)
	c.Clients[cl.ID] = cl
	return cl
}

// AddProject registers a project of a client and returns it.
func (c *Catalog) AddProject(name string, clientID id.ID) *project.Project {
	p := project.NewProject(name, clientID)
	c.Projects[p.ID] = p
	return p
}

// ClientLookup returns the client resolver of the catalog.
func (c *Catalog) ClientLookup() documents.ClientLookup { return clientLookup{c} }

// ProjectLookup returns the project resolver of the catalog.
func (c *Catalog) ProjectLookup() documents.ProjectLookup { return projectLookup{c} }

type clientLookup struct{ c *Catalog }

func (l clientLookup) GetByID(_ context.Context, clientID id.ID) (*client.Client, error) {
	cl, ok := l.c.Clients[clientID]
	if !ok {
		return nil, apperror.NewNotFound("client", clientID.String())
	}
	return cl, nil
}

type projectLookup struct{ c *Catalog }

func (l projectLookup) GetByID(_ context.Context, projectID id.ID) (*project.Project, error) {
	p, ok := l.c.Projects[projectID]
	if !ok {
		return nil, apperror.NewNotFound("project", projectID.String())
	}
	return p, nil
}
