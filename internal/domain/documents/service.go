package documents

import (
	"context"
	"fmt"
	"time"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/core/numerator"
	"docflow/internal/core/tx"
	"docflow/internal/domain/audit"
	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/catalogs/project"
	"docflow/internal/domain/events"
	"docflow/pkg/logger"
)

// EntityType names documents in the audit trail.
const EntityType = "document"

// ClientLookup resolves clients referenced by documents.
type ClientLookup interface {
	GetByID(ctx context.Context, clientID id.ID) (*client.Client, error)
}

// ProjectLookup resolves projects referenced by documents.
type ProjectLookup interface {
	GetByID(ctx context.Context, projectID id.ID) (*project.Project, error)
}

// Config wires the document service.
type Config struct {
	Repo      Repository
	Payments  PaymentRepository
	Clients   ClientLookup
	Projects  ProjectLookup
	Numerator numerator.Generator
	TxManager tx.Manager
	Audit     audit.Recorder
	Events    events.Publisher

	// Now defaults to time.Now in UTC
	Now func() time.Time
}

// Service provides the document lifecycle operations.
type Service struct {
	repo      Repository
	payments  PaymentRepository
	clients   ClientLookup
	projects  ProjectLookup
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Recorder
	events    events.Publisher
	now       func() time.Time
}

// NewService creates a new document service.
func NewService(cfg Config) *Service {
	s := &Service{
		repo:      cfg.Repo,
		payments:  cfg.Payments,
		clients:   cfg.Clients,
		projects:  cfg.Projects,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		audit:     cfg.Audit,
		events:    cfg.Events,
		now:       cfg.Now,
	}
	if s.txManager == nil {
		s.txManager = tx.Nop{}
	}
	if s.audit == nil {
		s.audit = audit.NopRecorder{}
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Create validates, prices, numbers and stores a new document.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Document, error) {
	if !in.Type.IsValid() {
		return nil, apperror.NewValidation(fmt.Sprintf("unknown document type %q", in.Type)).
			WithDetail("field", "type")
	}
	if err := validatePricing(in.DiscountType, in.DiscountValue, in.DepositPercent); err != nil {
		return nil, err
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	doc := NewDocument(in.Type)
	doc.Date = s.now()
	if in.Date != nil {
		doc.Date = *in.Date
	}
	doc.ValidUntil = in.ValidUntil
	doc.DueDate = in.DueDate
	doc.DiscountType = in.DiscountType
	doc.DiscountValue = in.DiscountValue
	doc.DepositPercent = in.DepositPercent
	doc.Notes = in.Notes
	doc.Conditions = in.Conditions
	doc.DeliveryDate = in.DeliveryDate
	doc.DeliveryAddress = in.DeliveryAddress
	doc.DeliveryCity = in.DeliveryCity
	doc.DeliveryNotes = in.DeliveryNotes
	doc.ReceivedBy = in.ReceivedBy
	doc.SignedBy = in.SignedBy

	if err := s.resolveClient(ctx, doc, in.ClientID); err != nil {
		return nil, err
	}
	if err := s.resolveProject(ctx, doc, in.ProjectID); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		doc.ParentID = &parent.ID
		ChainRefs(doc, parent)
	}

	doc.Items = buildItems(doc.ID, in.Items)
	doc.Recalculate()
	if err := checkDiscount(doc); err != nil {
		return nil, err
	}

	mode := in.Mode
	if in.LegacyNonDraft && mode == ModeDraft {
		logger.Info(ctx, "legacy non-draft create numbered as issue", "type", in.Type)
		mode = ModeIssue
	}
	if mode == ModeIssue {
		if missing := missingForIssue(doc); len(missing) > 0 {
			return nil, apperror.NewStateConflict(apperror.CodeIncompleteDocument, "document cannot be issued").
				WithDetail("errors", missing)
		}
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.Store(ctx, doc, mode); err != nil {
			return err
		}
		if err := s.audit.LogChange(ctx, EntityType, doc.ID, audit.ActionCreate, createdChanges(doc)); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return s.publish(ctx, doc, events.DocumentCreated, map[string]any{
			"type":   doc.Type,
			"number": doc.Number,
			"status": doc.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document created",
		"id", doc.ID,
		"type", doc.Type,
		"number", doc.Number)

	return doc, nil
}

// Store numbers doc and inserts it with its items. It must run inside a
// transaction; callers record their own audit entries and events.
func (s *Service) Store(ctx context.Context, doc *Document, mode Mode) error {
	now := s.now()
	audit.EnrichCreated(ctx, &doc.BaseDocument)
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if mode == ModeIssue {
		if err := s.assignOfficialNumber(ctx, doc, now); err != nil {
			return err
		}
		doc.Status = IssuedStatus(doc.Type, doc.Status)
	} else {
		doc.Number = DraftNumber(doc.Type, now)
		doc.IsDraft = true
		doc.IsLocked = false
	}

	for i := range doc.Items {
		doc.Items[i].DocumentID = doc.ID
		doc.Items[i].Position = i
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if err := s.repo.SaveItems(ctx, doc.ID, doc.Items); err != nil {
		return fmt.Errorf("save items: %w", err)
	}
	return nil
}

// assignOfficialNumber allocates the next number of the type's sequence and
// freezes the document. The draft token, if any, is kept in DraftNumber.
func (s *Service) assignOfficialNumber(ctx context.Context, doc *Document, now time.Time) error {
	number, err := s.numerator.Next(ctx, doc.Type.Category(), now)
	if err != nil {
		return fmt.Errorf("allocate number: %w", err)
	}
	if IsDraftNumber(doc.Number) {
		previous := doc.Number
		doc.DraftNumber = &previous
	}
	issuedAt := now
	doc.Number = number
	doc.IsDraft = false
	doc.IsLocked = true
	doc.IssuedAt = &issuedAt
	hash := ContentHash(doc)
	doc.ContentHash = &hash
	return nil
}

// Get returns a document with its items, payments and related documents.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Detail, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Items, err = s.repo.GetItems(ctx, docID); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	detail := &Detail{Document: doc, Payments: []Payment{}, Children: []Summary{}}

	if s.payments != nil {
		payments, err := s.payments.ListByDocument(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("get payments: %w", err)
		}
		if payments != nil {
			detail.Payments = payments
		}
	}

	if doc.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *doc.ParentID)
		switch {
		case err == nil:
			summary := SummaryOf(parent)
			detail.Parent = &summary
		case !apperror.IsNotFound(err):
			return nil, fmt.Errorf("get parent: %w", err)
		}
	}

	children, err := s.repo.ListChildren(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get children: %w", err)
	}
	for _, child := range children {
		detail.Children = append(detail.Children, SummaryOf(child))
	}

	return detail, nil
}

// GetDocument returns the document row with its items.
func (s *Service) GetDocument(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Items, err = s.repo.GetItems(ctx, docID); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return doc, nil
}

// List retrieves documents with filtering and pagination.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	return s.repo.List(ctx, filter)
}

// PreviewNumber returns the number the next issue of type t would get.
func (s *Service) PreviewNumber(ctx context.Context, t Type) (string, error) {
	if !t.IsValid() {
		return "", apperror.NewValidation(fmt.Sprintf("unknown document type %q", t)).
			WithDetail("field", "type")
	}
	return s.numerator.Peek(ctx, t.Category(), s.now())
}

// Workflow describes where a document stands in its lifecycle.
type Workflow struct {
	Status  Status       `json:"status"`
	Allowed []Transition `json:"allowedTransitions"`
	Steps   []Status     `json:"steps"`
}

// Workflow returns the allowed transitions and display steps of a document.
func (s *Service) Workflow(ctx context.Context, docID id.ID) (*Workflow, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		Status:  doc.Status,
		Allowed: AllowedTransitions(doc.Status),
		Steps:   WorkflowSteps(doc.Type),
	}, nil
}

func (s *Service) resolveClient(ctx context.Context, doc *Document, clientID *id.ID) error {
	if clientID == nil {
		return nil
	}
	c, err := s.clients.GetByID(ctx, *clientID)
	if err != nil {
		return err
	}
	doc.ClientID = &c.ID
	SnapshotClient(doc, c)
	return nil
}

func (s *Service) resolveProject(ctx context.Context, doc *Document, projectID *id.ID) error {
	if projectID == nil {
		return nil
	}
	p, err := s.projects.GetByID(ctx, *projectID)
	if err != nil {
		return err
	}
	doc.ProjectID = &p.ID
	return nil
}

func (s *Service) publish(ctx context.Context, doc *Document, eventType string, payload map[string]any) error {
	err := s.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateDocument,
		AggregateID:   doc.ID,
		Type:          eventType,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// SnapshotClient copies the client identity onto the document.
func SnapshotClient(doc *Document, c *client.Client) {
	name := c.Name
	doc.ClientName = &name
	doc.ClientAddress = c.Address
	doc.ClientCity = c.City
	doc.ClientTaxID = c.TaxID
	doc.ClientPhone = c.Phone
	doc.ClientEmail = c.Email
}

// CopyClient copies the client reference and snapshot of src onto dst.
func CopyClient(dst, src *Document) {
	dst.ClientID = src.ClientID
	dst.ClientName = src.ClientName
	dst.ClientAddress = src.ClientAddress
	dst.ClientCity = src.ClientCity
	dst.ClientTaxID = src.ClientTaxID
	dst.ClientPhone = src.ClientPhone
	dst.ClientEmail = src.ClientEmail
	dst.ProjectID = src.ProjectID
}

// ChainRefs carries the upstream references of parent onto child and adds
// the parent's own official number in the field of its type.
func ChainRefs(child, parent *Document) {
	child.QuoteRef = parent.QuoteRef
	child.OrderRef = parent.OrderRef
	child.DeliveryRef = parent.DeliveryRef
	child.AcceptanceRef = parent.AcceptanceRef

	if parent.Number == "" || IsDraftNumber(parent.Number) {
		return
	}
	ref := parent.Number
	switch parent.Type {
	case TypeQuote:
		child.QuoteRef = &ref
	case TypePurchaseOrder:
		child.OrderRef = &ref
	case TypeDeliveryNote:
		child.DeliveryRef = &ref
	case TypeAcceptanceReport:
		child.AcceptanceRef = &ref
	case TypeInvoice:
		child.InvoiceRef = &ref
	}
}

func missingForIssue(d *Document) []string {
	var missing []string
	if d.ClientID == nil {
		missing = append(missing, "client is required")
	}
	if len(d.Items) == 0 {
		missing = append(missing, "at least one item is required")
	}
	return missing
}

func createdChanges(doc *Document) map[string]any {
	return map[string]any{
		"type":     doc.Type,
		"number":   doc.Number,
		"status":   doc.Status,
		"items":    len(doc.Items),
		"totalTTC": doc.TotalTTC.StringFixed(2),
	}
}
