package dto

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/id"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/totals"
)

// --- Requests ---

// ItemRequest is one document line.
type ItemRequest struct {
	Reference       *string          `json:"reference" binding:"omitempty,max=100"`
	Designation     string           `json:"designation" binding:"required,max=500"`
	Description     *string          `json:"description"`
	Unit            string           `json:"unit" binding:"omitempty,max=20"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPriceHT     decimal.Decimal  `json:"unitPriceHT"`
	DiscountPercent *decimal.Decimal `json:"discountPercent"`
	TVARate         *decimal.Decimal `json:"tvaRate"`
	CatalogItemID   *string          `json:"catalogItemId" binding:"omitempty,uuid"`
}

func (r ItemRequest) toInput(field string) (documents.ItemInput, error) {
	catalogID, err := ParseOptionalID(field+".catalogItemId", r.CatalogItemID)
	if err != nil {
		return documents.ItemInput{}, err
	}
	return documents.ItemInput{
		Reference:       r.Reference,
		Designation:     r.Designation,
		Description:     r.Description,
		Unit:            r.Unit,
		Quantity:        r.Quantity,
		UnitPriceHT:     r.UnitPriceHT,
		DiscountPercent: r.DiscountPercent,
		TVARate:         r.TVARate,
		CatalogItemID:   catalogID,
	}, nil
}

func itemInputs(items []ItemRequest) ([]documents.ItemInput, error) {
	out := make([]documents.ItemInput, 0, len(items))
	for i, it := range items {
		in, err := it.toInput("items[" + strconv.Itoa(i) + "]")
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

// DeliveryFields are the delivery columns editable on create and update.
type DeliveryFields struct {
	DeliveryDate    *Date   `json:"deliveryDate"`
	DeliveryAddress *string `json:"deliveryAddress" binding:"omitempty,max=500"`
	DeliveryCity    *string `json:"deliveryCity" binding:"omitempty,max=100"`
	DeliveryNotes   *string `json:"deliveryNotes"`
}

func (f DeliveryFields) info() documents.DeliveryInfo {
	return documents.DeliveryInfo{
		DeliveryDate:    f.DeliveryDate.TimePtr(),
		DeliveryAddress: f.DeliveryAddress,
		DeliveryCity:    f.DeliveryCity,
		DeliveryNotes:   f.DeliveryNotes,
	}
}

// CreateDocumentRequest is the body of POST /documents.
type CreateDocumentRequest struct {
	Type             string `json:"type" binding:"required,oneof=QUOTE PURCHASE_ORDER DELIVERY_NOTE ACCEPTANCE_REPORT INVOICE DEPOSIT_INVOICE CREDIT_NOTE"`
	IssueImmediately bool   `json:"issueImmediately"`

	// IsDraft=false is the legacy way of asking for an official number.
	IsDraft *bool `json:"isDraft"`

	Date       *Date `json:"date"`
	ValidUntil *Date `json:"validUntil"`
	DueDate    *Date `json:"dueDate"`

	ClientID  *string `json:"clientId" binding:"omitempty,uuid"`
	ProjectID *string `json:"projectId" binding:"omitempty,uuid"`
	ParentID  *string `json:"parentId" binding:"omitempty,uuid"`

	DiscountType   *string          `json:"discountType" binding:"omitempty,oneof=percentage fixed"`
	DiscountValue  *decimal.Decimal `json:"discountValue"`
	DepositPercent *decimal.Decimal `json:"depositPercent"`

	Notes      *string `json:"notes"`
	Conditions *string `json:"conditions"`
	DeliveryFields
	ReceivedBy *string `json:"receivedBy" binding:"omitempty,max=200"`
	SignedBy   *string `json:"signedBy" binding:"omitempty,max=200"`

	Items []ItemRequest `json:"items" binding:"omitempty,dive"`
}

// ToInput converts the request into the domain input.
func (r CreateDocumentRequest) ToInput() (documents.CreateInput, error) {
	in := documents.CreateInput{
		Type:           documents.Type(r.Type),
		Date:           r.Date.TimePtr(),
		ValidUntil:     r.ValidUntil.TimePtr(),
		DueDate:        r.DueDate.TimePtr(),
		DiscountType:   discountTypePtr(r.DiscountType),
		DiscountValue:  r.DiscountValue,
		DepositPercent: r.DepositPercent,
		Notes:          r.Notes,
		Conditions:     r.Conditions,
		DeliveryInfo:   r.DeliveryFields.info(),
		ReceivedBy:     r.ReceivedBy,
		SignedBy:       r.SignedBy,
	}
	if r.IssueImmediately {
		in.Mode = documents.ModeIssue
	}
	in.LegacyNonDraft = r.IsDraft != nil && !*r.IsDraft && !r.IssueImmediately

	var err error
	if in.ClientID, err = ParseOptionalID("clientId", r.ClientID); err != nil {
		return in, err
	}
	if in.ProjectID, err = ParseOptionalID("projectId", r.ProjectID); err != nil {
		return in, err
	}
	if in.ParentID, err = ParseOptionalID("parentId", r.ParentID); err != nil {
		return in, err
	}
	if in.Items, err = itemInputs(r.Items); err != nil {
		return in, err
	}
	return in, nil
}

// UpdateDocumentRequest is the body of PUT /documents/:id. Absent fields
// are left unchanged.
type UpdateDocumentRequest struct {
	Version *int    `json:"version" binding:"omitempty,min=1"`
	Status  *string `json:"status" binding:"omitempty,oneof=DRAFT SENT VIEWED ACCEPTED REJECTED CONFIRMED PARTIAL DELIVERED SIGNED PAID OVERDUE CANCELLED"`
	Reason  string  `json:"reason" binding:"max=1000"`

	Date       *Date `json:"date"`
	ValidUntil *Date `json:"validUntil"`
	DueDate    *Date `json:"dueDate"`

	ClientID  *string `json:"clientId" binding:"omitempty,uuid"`
	ProjectID *string `json:"projectId" binding:"omitempty,uuid"`

	DiscountType   *string          `json:"discountType" binding:"omitempty,oneof=percentage fixed"`
	DiscountValue  *decimal.Decimal `json:"discountValue"`
	DepositPercent *decimal.Decimal `json:"depositPercent"`

	Notes      *string `json:"notes"`
	Conditions *string `json:"conditions"`
	DeliveryFields
	ReceivedBy *string `json:"receivedBy" binding:"omitempty,max=200"`
	SignedBy   *string `json:"signedBy" binding:"omitempty,max=200"`

	Items *[]ItemRequest `json:"items" binding:"omitempty,dive"`
}

// ToInput converts the request into the domain patch.
func (r UpdateDocumentRequest) ToInput() (documents.UpdateInput, error) {
	in := documents.UpdateInput{
		Version:        r.Version,
		Status:         statusPtr(r.Status),
		Reason:         r.Reason,
		Date:           r.Date.TimePtr(),
		ValidUntil:     r.ValidUntil.TimePtr(),
		DueDate:        r.DueDate.TimePtr(),
		DiscountType:   discountTypePtr(r.DiscountType),
		DiscountValue:  r.DiscountValue,
		DepositPercent: r.DepositPercent,
		Notes:          r.Notes,
		Conditions:     r.Conditions,
		DeliveryInfo:   r.DeliveryFields.info(),
		ReceivedBy:     r.ReceivedBy,
		SignedBy:       r.SignedBy,
	}
	var err error
	if in.ClientID, err = ParseOptionalID("clientId", r.ClientID); err != nil {
		return in, err
	}
	if in.ProjectID, err = ParseOptionalID("projectId", r.ProjectID); err != nil {
		return in, err
	}
	if r.Items != nil {
		items, err := itemInputs(*r.Items)
		if err != nil {
			return in, err
		}
		in.Items = &items
	}
	return in, nil
}

// StatusRequest is the body of PUT /documents/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=DRAFT SENT VIEWED ACCEPTED REJECTED CONFIRMED PARTIAL DELIVERED SIGNED PAID OVERDUE CANCELLED"`
	Reason string `json:"reason" binding:"max=1000"`
}

// ConvertItemRequest selects a source line for a conversion.
type ConvertItemRequest struct {
	ItemID   string          `json:"itemId" binding:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ConvertRequest is the body of POST /documents/:id/convert.
type ConvertRequest struct {
	TargetType string               `json:"targetType" binding:"required,oneof=QUOTE PURCHASE_ORDER DELIVERY_NOTE ACCEPTANCE_REPORT INVOICE DEPOSIT_INVOICE CREDIT_NOTE"`
	Items      []ConvertItemRequest `json:"items" binding:"omitempty,dive"`
	DueDate    *Date                `json:"dueDate"`
	DeliveryFields
	Reason *string `json:"reason"`
}

// ToInput converts the request into the domain input.
func (r ConvertRequest) ToInput() (documents.ConvertInput, error) {
	in := documents.ConvertInput{
		TargetType:   documents.Type(r.TargetType),
		DueDate:      r.DueDate.TimePtr(),
		DeliveryInfo: r.DeliveryFields.info(),
		Reason:       r.Reason,
	}
	for i, it := range r.Items {
		itemID, err := id.Parse(it.ItemID)
		if err != nil {
			return in, &FieldFormatError{Field: "items[" + strconv.Itoa(i) + "].itemId", Err: err}
		}
		in.Items = append(in.Items, documents.ConvertItem{ItemID: itemID, Quantity: it.Quantity})
	}
	return in, nil
}

// ListDocumentsQuery holds the query parameters of GET /documents.
type ListDocumentsQuery struct {
	PaginationRequest
	Type      string `form:"type" binding:"omitempty,oneof=QUOTE PURCHASE_ORDER DELIVERY_NOTE ACCEPTANCE_REPORT INVOICE DEPOSIT_INVOICE CREDIT_NOTE"`
	Status    string `form:"status" binding:"omitempty,oneof=DRAFT SENT VIEWED ACCEPTED REJECTED CONFIRMED PARTIAL DELIVERED SIGNED PAID OVERDUE CANCELLED"`
	ClientID  string `form:"clientId" binding:"omitempty,uuid"`
	ProjectID string `form:"projectId" binding:"omitempty,uuid"`
	DateFrom  string `form:"dateFrom"`
	DateTo    string `form:"dateTo"`
	Search    string `form:"search" binding:"max=200"`
}

// ToFilter converts the query into a domain filter.
func (q ListDocumentsQuery) ToFilter() (documents.ListFilter, error) {
	var f documents.ListFilter
	f.Search = q.Search
	f.OrderBy = "-created_at"
	q.Apply(&f.ListFilter)

	if q.Type != "" {
		t := documents.Type(q.Type)
		f.Type = &t
	}
	if q.Status != "" {
		s := documents.Status(q.Status)
		f.Status = &s
	}
	var err error
	if f.ClientID, err = ParseOptionalID("clientId", &q.ClientID); err != nil {
		return f, err
	}
	if f.ProjectID, err = ParseOptionalID("projectId", &q.ProjectID); err != nil {
		return f, err
	}
	if f.DateFrom, err = parseQueryDate("dateFrom", q.DateFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = parseQueryDate("dateTo", q.DateTo); err != nil {
		return f, err
	}
	return f, nil
}

// NextNumberQuery holds the query of GET /documents/next-number.
type NextNumberQuery struct {
	Type string `form:"type" binding:"required,oneof=QUOTE PURCHASE_ORDER DELIVERY_NOTE ACCEPTANCE_REPORT INVOICE DEPOSIT_INVOICE CREDIT_NOTE"`
}

// --- Responses ---

// BandResponse is one VAT band.
type BandResponse struct {
	Rate   Number `json:"rate"`
	Base   Money  `json:"base"`
	Amount Money  `json:"amount"`
}

// ItemResponse is one document line.
type ItemResponse struct {
	ID          string  `json:"id"`
	Position    int     `json:"position"`
	Reference   *string `json:"reference,omitempty"`
	Designation string  `json:"designation"`
	Description *string `json:"description,omitempty"`
	Unit        string  `json:"unit"`

	Quantity        Number `json:"quantity"`
	UnitPriceHT     Money  `json:"unitPriceHT"`
	DiscountPercent Number `json:"discountPercent"`
	TVARate         Number `json:"tvaRate"`
	DiscountAmount  Money  `json:"discountAmount"`
	TotalHT         Money  `json:"totalHT"`
	TotalTVA        Money  `json:"totalTVA"`
	TotalTTC        Money  `json:"totalTTC"`

	CatalogItemID     *id.ID `json:"catalogItemId,omitempty"`
	SourceOrderItemID *id.ID `json:"sourceOrderItemId,omitempty"`

	OrderedQty        *Number `json:"orderedQty,omitempty"`
	DeliveredQty      *Number `json:"deliveredQty,omitempty"`
	TotalDeliveredQty *Number `json:"totalDeliveredQty,omitempty"`
	RemainingQty      *Number `json:"remainingQty,omitempty"`
}

// FromItem maps a domain line.
func FromItem(it documents.Item) ItemResponse {
	return ItemResponse{
		ID:                it.ID.String(),
		Position:          it.Position,
		Reference:         it.Reference,
		Designation:       it.Designation,
		Description:       it.Description,
		Unit:              it.Unit,
		Quantity:          NewNumber(it.Quantity),
		UnitPriceHT:       NewMoney(it.UnitPriceHT),
		DiscountPercent:   NewNumber(it.DiscountPercent),
		TVARate:           NewNumber(it.TVARate),
		DiscountAmount:    NewMoney(it.DiscountAmount),
		TotalHT:           NewMoney(it.TotalHT),
		TotalTVA:          NewMoney(it.TotalTVA),
		TotalTTC:          NewMoney(it.TotalTTC),
		CatalogItemID:     it.CatalogItemID,
		SourceOrderItemID: it.SourceOrderItemID,
		OrderedQty:        NumberPtr(it.OrderedQty),
		DeliveredQty:      NumberPtr(it.DeliveredQty),
		TotalDeliveredQty: NumberPtr(it.TotalDeliveredQty),
		RemainingQty:      NumberPtr(it.RemainingQty),
	}
}

// DocumentResponse is a document as sent over the wire.
type DocumentResponse struct {
	ID          string     `json:"id"`
	Version     int        `json:"version"`
	Type        string     `json:"type"`
	Number      string     `json:"number"`
	DraftNumber *string    `json:"draftNumber,omitempty"`
	Status      string     `json:"status"`
	Date        time.Time  `json:"date"`
	ValidUntil  *time.Time `json:"validUntil,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`

	IsDraft     bool       `json:"isDraft"`
	IsLocked    bool       `json:"isLocked"`
	IssuedAt    *time.Time `json:"issuedAt,omitempty"`
	ContentHash *string    `json:"contentHash,omitempty"`

	ClientID      *id.ID  `json:"clientId,omitempty"`
	ProjectID     *id.ID  `json:"projectId,omitempty"`
	ClientName    *string `json:"clientName,omitempty"`
	ClientAddress *string `json:"clientAddress,omitempty"`
	ClientCity    *string `json:"clientCity,omitempty"`
	ClientTaxID   *string `json:"clientTaxId,omitempty"`
	ClientPhone   *string `json:"clientPhone,omitempty"`
	ClientEmail   *string `json:"clientEmail,omitempty"`

	ParentID      *id.ID  `json:"parentId,omitempty"`
	QuoteRef      *string `json:"quoteRef,omitempty"`
	OrderRef      *string `json:"orderRef,omitempty"`
	DeliveryRef   *string `json:"deliveryRef,omitempty"`
	AcceptanceRef *string `json:"acceptanceRef,omitempty"`
	InvoiceRef    *string `json:"invoiceRef,omitempty"`

	TotalHT        Money `json:"totalHT"`
	DiscountAmount Money `json:"discountAmount"`
	NetHT          Money `json:"netHT"`
	TotalTVA       Money `json:"totalTVA"`
	TotalTTC       Money `json:"totalTTC"`
	PaidAmount     Money `json:"paidAmount"`
	Balance        Money `json:"balance"`

	DiscountType   *string        `json:"discountType,omitempty"`
	DiscountValue  *Number        `json:"discountValue,omitempty"`
	DepositPercent *Number        `json:"depositPercent,omitempty"`
	DepositAmount  *Money         `json:"depositAmount,omitempty"`
	TVADetails     []BandResponse `json:"tvaDetails"`

	Notes      *string `json:"notes,omitempty"`
	Conditions *string `json:"conditions,omitempty"`

	DeliveryDate    *time.Time `json:"deliveryDate,omitempty"`
	DeliveryAddress *string    `json:"deliveryAddress,omitempty"`
	DeliveryCity    *string    `json:"deliveryCity,omitempty"`
	DeliveryNotes   *string    `json:"deliveryNotes,omitempty"`
	ReceivedBy      *string    `json:"receivedBy,omitempty"`
	ReceivedAt      *time.Time `json:"receivedAt,omitempty"`
	SignedBy        *string    `json:"signedBy,omitempty"`
	SignedAt        *time.Time `json:"signedAt,omitempty"`

	LinkedQuoteID   *id.ID `json:"linkedQuoteId,omitempty"`
	DepositsApplied Money  `json:"depositsApplied"`

	SentAt             *time.Time `json:"sentAt,omitempty"`
	PaidAt             *time.Time `json:"paidAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason *string    `json:"cancellationReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy *string   `json:"createdBy,omitempty"`
	UpdatedBy *string   `json:"updatedBy,omitempty"`

	Items []ItemResponse `json:"items,omitempty"`
}

// FromDocument maps a domain document with the items it carries.
func FromDocument(d *documents.Document) DocumentResponse {
	r := DocumentResponse{
		ID:          d.ID.String(),
		Version:     d.Version,
		Type:        string(d.Type),
		Number:      d.Number,
		DraftNumber: d.DraftNumber,
		Status:      string(d.Status),
		Date:        d.Date,
		ValidUntil:  d.ValidUntil,
		DueDate:     d.DueDate,

		IsDraft:     d.IsDraft,
		IsLocked:    d.IsLocked,
		IssuedAt:    d.IssuedAt,
		ContentHash: d.ContentHash,

		ClientID:      d.ClientID,
		ProjectID:     d.ProjectID,
		ClientName:    d.ClientName,
		ClientAddress: d.ClientAddress,
		ClientCity:    d.ClientCity,
		ClientTaxID:   d.ClientTaxID,
		ClientPhone:   d.ClientPhone,
		ClientEmail:   d.ClientEmail,

		ParentID:      d.ParentID,
		QuoteRef:      d.QuoteRef,
		OrderRef:      d.OrderRef,
		DeliveryRef:   d.DeliveryRef,
		AcceptanceRef: d.AcceptanceRef,
		InvoiceRef:    d.InvoiceRef,

		TotalHT:        NewMoney(d.TotalHT),
		DiscountAmount: NewMoney(d.DiscountAmount),
		NetHT:          NewMoney(d.NetHT),
		TotalTVA:       NewMoney(d.TotalTVA),
		TotalTTC:       NewMoney(d.TotalTTC),
		PaidAmount:     NewMoney(d.PaidAmount),
		Balance:        NewMoney(d.Balance),

		DiscountValue:  NumberPtr(d.DiscountValue),
		DepositPercent: NumberPtr(d.DepositPercent),
		DepositAmount:  MoneyPtr(d.DepositAmount),
		TVADetails:     make([]BandResponse, 0, len(d.TVADetails)),

		Notes:      d.Notes,
		Conditions: d.Conditions,

		DeliveryDate:    d.DeliveryDate,
		DeliveryAddress: d.DeliveryAddress,
		DeliveryCity:    d.DeliveryCity,
		DeliveryNotes:   d.DeliveryNotes,
		ReceivedBy:      d.ReceivedBy,
		ReceivedAt:      d.ReceivedAt,
		SignedBy:        d.SignedBy,
		SignedAt:        d.SignedAt,

		LinkedQuoteID:   d.LinkedQuoteID,
		DepositsApplied: NewMoney(d.DepositsApplied),

		SentAt:             d.SentAt,
		PaidAt:             d.PaidAt,
		CancelledAt:        d.CancelledAt,
		CancellationReason: d.CancellationReason,

		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		CreatedBy: d.CreatedBy,
		UpdatedBy: d.UpdatedBy,
	}
	if d.DiscountType != nil && *d.DiscountType != "" {
		dt := string(*d.DiscountType)
		r.DiscountType = &dt
	}
	for _, b := range d.TVADetails {
		r.TVADetails = append(r.TVADetails, BandResponse{Rate: NewNumber(b.Rate), Base: NewMoney(b.Base), Amount: NewMoney(b.Amount)})
	}
	for _, it := range d.Items {
		r.Items = append(r.Items, FromItem(it))
	}
	return r
}

// FromDocuments maps a slice of documents.
func FromDocuments(docs []*documents.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, FromDocument(d))
	}
	return out
}

// SummaryResponse identifies a related document.
type SummaryResponse struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Number   string    `json:"number"`
	Status   string    `json:"status"`
	Date     time.Time `json:"date"`
	TotalTTC Money     `json:"totalTTC"`
}

// FromSummary maps a domain summary.
func FromSummary(s documents.Summary) SummaryResponse {
	return SummaryResponse{
		ID:       s.ID.String(),
		Type:     string(s.Type),
		Number:   s.Number,
		Status:   string(s.Status),
		Date:     s.Date,
		TotalTTC: NewMoney(s.TotalTTC),
	}
}

// FromSummaries maps a slice of summaries.
func FromSummaries(in []documents.Summary) []SummaryResponse {
	out := make([]SummaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, FromSummary(s))
	}
	return out
}

// PaymentResponse is a recorded payment.
type PaymentResponse struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Amount     Money     `json:"amount"`
	Method     string    `json:"method"`
	Reference  *string   `json:"reference,omitempty"`
	PaidAt     time.Time `json:"paidAt"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	CreatedBy  *string   `json:"createdBy,omitempty"`
}

// FromPayment maps a domain payment.
func FromPayment(p documents.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID.String(),
		DocumentID: p.DocumentID.String(),
		Amount:     NewMoney(p.Amount),
		Method:     string(p.Method),
		Reference:  p.Reference,
		PaidAt:     p.PaidAt,
		Notes:      p.Notes,
		CreatedAt:  p.CreatedAt,
		CreatedBy:  p.CreatedBy,
	}
}

// FromPayments maps a slice of payments.
func FromPayments(in []documents.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(in))
	for _, p := range in {
		out = append(out, FromPayment(p))
	}
	return out
}

// DetailResponse is GET /documents/:id.
type DetailResponse struct {
	DocumentResponse
	Payments []PaymentResponse `json:"payments"`
	Parent   *SummaryResponse  `json:"parent,omitempty"`
	Children []SummaryResponse `json:"children"`
}

// FromDetail maps the detail view.
func FromDetail(d *documents.Detail) DetailResponse {
	r := DetailResponse{
		DocumentResponse: FromDocument(d.Document),
		Payments:         FromPayments(d.Payments),
		Children:         FromSummaries(d.Children),
	}
	if r.Items == nil {
		r.Items = []ItemResponse{}
	}
	if d.Parent != nil {
		p := FromSummary(*d.Parent)
		r.Parent = &p
	}
	return r
}

// DocumentListResponse is GET /documents.
type DocumentListResponse struct {
	Documents  []DocumentResponse `json:"documents"`
	Pagination PaginationResponse `json:"pagination"`
}

// IssueResponse reports the number given to an issued draft.
type IssueResponse struct {
	Document       DocumentResponse `json:"document"`
	PreviousNumber string           `json:"previousNumber"`
	OfficialNumber string           `json:"officialNumber"`
}

// FromIssue maps an issue result.
func FromIssue(r *documents.IssueResult) IssueResponse {
	return IssueResponse{
		Document:       FromDocument(r.Document),
		PreviousNumber: r.PreviousNumber,
		OfficialNumber: r.OfficialNumber,
	}
}

// NextNumberResponse is GET /documents/next-number.
type NextNumberResponse struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// DiscrepancyResponse is one drifted amount.
type DiscrepancyResponse struct {
	Field    string `json:"field"`
	Stored   Money  `json:"stored"`
	Computed Money  `json:"computed"`
}

// IntegrityResponse is GET /documents/:id/integrity.
type IntegrityResponse struct {
	DocumentID    string                `json:"documentId"`
	Number        string                `json:"number"`
	IsValid       bool                  `json:"isValid"`
	StoredHash    string                `json:"storedHash,omitempty"`
	CurrentHash   string                `json:"currentHash,omitempty"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
	Note          string                `json:"note,omitempty"`
}

// FromIntegrity maps an integrity report.
func FromIntegrity(r *documents.IntegrityReport) IntegrityResponse {
	out := IntegrityResponse{
		DocumentID:    r.DocumentID.String(),
		Number:        r.Number,
		IsValid:       r.IsValid,
		StoredHash:    r.StoredHash,
		CurrentHash:   r.CurrentHash,
		Discrepancies: make([]DiscrepancyResponse, 0, len(r.Discrepancies)),
		Note:          r.Note,
	}
	for _, d := range r.Discrepancies {
		out.Discrepancies = append(out.Discrepancies, DiscrepancyResponse{
			Field: d.Field, Stored: NewMoney(d.Stored), Computed: NewMoney(d.Computed),
		})
	}
	return out
}

func statusPtr(s *string) *documents.Status {
	if s == nil {
		return nil
	}
	v := documents.Status(*s)
	return &v
}

func discountTypePtr(s *string) *totals.DiscountType {
	if s == nil {
		return nil
	}
	v := totals.DiscountType(*s)
	return &v
}
