// Package documents implements the lifecycle of commercial documents:
// numbering, draft/issue/lock semantics, status transitions and the
// edit and delete guards.
package documents

import (
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/entity"
	"docflow/internal/core/id"
	"docflow/internal/core/numerator"
	"docflow/internal/core/types"
	"docflow/internal/domain/totals"
)

// Type is the kind of commercial paper.
type Type string

const (
	TypeQuote            Type = "QUOTE"
	TypePurchaseOrder    Type = "PURCHASE_ORDER"
	TypeDeliveryNote     Type = "DELIVERY_NOTE"
	TypeAcceptanceReport Type = "ACCEPTANCE_REPORT"
	TypeInvoice          Type = "INVOICE"
	TypeDepositInvoice   Type = "DEPOSIT_INVOICE"
	TypeCreditNote       Type = "CREDIT_NOTE"
)

var allTypes = []Type{
	TypeQuote, TypePurchaseOrder, TypeDeliveryNote, TypeAcceptanceReport,
	TypeInvoice, TypeDepositInvoice, TypeCreditNote,
}

// Types returns every document type.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	for _, v := range allTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Category returns the numbering sequence of the type.
func (t Type) Category() numerator.Category {
	switch t {
	case TypeQuote:
		return numerator.CategoryQuote
	case TypePurchaseOrder:
		return numerator.CategoryPurchaseOrder
	case TypeDeliveryNote:
		return numerator.CategoryDeliveryNote
	case TypeAcceptanceReport:
		return numerator.CategoryAcceptanceReport
	case TypeDepositInvoice:
		return numerator.CategoryDepositInvoice
	case TypeCreditNote:
		return numerator.CategoryCreditNote
	default:
		return numerator.CategoryInvoice
	}
}

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusViewed    Status = "VIEWED"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusPartial   Status = "PARTIAL"
	StatusDelivered Status = "DELIVERED"
	StatusSigned    Status = "SIGNED"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// Document is one commercial paper with its totals and links.
type Document struct {
	entity.BaseDocument

	Type        Type       `db:"type" json:"type"`
	Number      string     `db:"number" json:"number"`
	DraftNumber *string    `db:"draft_number" json:"draftNumber,omitempty"`
	Status      Status     `db:"status" json:"status"`
	Date        time.Time  `db:"date" json:"date"`
	ValidUntil  *time.Time `db:"valid_until" json:"validUntil,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"dueDate,omitempty"`

	IsDraft     bool       `db:"is_draft" json:"isDraft"`
	IsLocked    bool       `db:"is_locked" json:"isLocked"`
	IssuedAt    *time.Time `db:"issued_at" json:"issuedAt,omitempty"`
	ContentHash *string    `db:"content_hash" json:"contentHash,omitempty"`

	ClientID  *id.ID `db:"client_id" json:"clientId,omitempty"`
	ProjectID *id.ID `db:"project_id" json:"projectId,omitempty"`

	// Client identity captured when the document was created
	ClientName    *string `db:"client_name" json:"clientName,omitempty"`
	ClientAddress *string `db:"client_address" json:"clientAddress,omitempty"`
	ClientCity    *string `db:"client_city" json:"clientCity,omitempty"`
	ClientTaxID   *string `db:"client_tax_id" json:"clientTaxId,omitempty"`
	ClientPhone   *string `db:"client_phone" json:"clientPhone,omitempty"`
	ClientEmail   *string `db:"client_email" json:"clientEmail,omitempty"`

	ParentID *id.ID `db:"parent_id" json:"parentId,omitempty"`

	// Official numbers of the upstream documents of the chain
	QuoteRef      *string `db:"quote_ref" json:"quoteRef,omitempty"`
	OrderRef      *string `db:"order_ref" json:"orderRef,omitempty"`
	DeliveryRef   *string `db:"delivery_ref" json:"deliveryRef,omitempty"`
	AcceptanceRef *string `db:"acceptance_ref" json:"acceptanceRef,omitempty"`
	InvoiceRef    *string `db:"invoice_ref" json:"invoiceRef,omitempty"`

	TotalHT        types.Money `db:"total_ht" json:"totalHT"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	NetHT          types.Money `db:"net_ht" json:"netHT"`
	TotalTVA       types.Money `db:"total_tva" json:"totalTVA"`
	TotalTTC       types.Money `db:"total_ttc" json:"totalTTC"`
	PaidAmount     types.Money `db:"paid_amount" json:"paidAmount"`
	Balance        types.Money `db:"balance" json:"balance"`

	DiscountType   *totals.DiscountType `db:"discount_type" json:"discountType,omitempty"`
	DiscountValue  *decimal.Decimal     `db:"discount_value" json:"discountValue,omitempty"`
	DepositPercent *decimal.Decimal     `db:"deposit_percent" json:"depositPercent,omitempty"`
	DepositAmount  *types.Money         `db:"deposit_amount" json:"depositAmount,omitempty"`

	TVADetails []totals.Band `db:"tva_details" json:"tvaDetails"`

	Notes      *string `db:"notes" json:"notes,omitempty"`
	Conditions *string `db:"conditions" json:"conditions,omitempty"`

	DeliveryDate    *time.Time `db:"delivery_date" json:"deliveryDate,omitempty"`
	DeliveryAddress *string    `db:"delivery_address" json:"deliveryAddress,omitempty"`
	DeliveryCity    *string    `db:"delivery_city" json:"deliveryCity,omitempty"`
	DeliveryNotes   *string    `db:"delivery_notes" json:"deliveryNotes,omitempty"`
	ReceivedBy      *string    `db:"received_by" json:"receivedBy,omitempty"`
	ReceivedAt      *time.Time `db:"received_at" json:"receivedAt,omitempty"`

	SignedBy *string    `db:"signed_by" json:"signedBy,omitempty"`
	SignedAt *time.Time `db:"signed_at" json:"signedAt,omitempty"`

	LinkedQuoteID   *id.ID      `db:"linked_quote_id" json:"linkedQuoteId,omitempty"`
	DepositsApplied types.Money `db:"deposits_applied" json:"depositsApplied"`

	SentAt             *time.Time `db:"sent_at" json:"sentAt,omitempty"`
	PaidAt             *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellationReason,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// NewDocument creates an empty draft of the given type.
func NewDocument(t Type) *Document {
	return &Document{
		BaseDocument:    entity.NewBaseDocument(),
		Type:            t,
		Status:          StatusDraft,
		Date:            time.Now().UTC(),
		IsDraft:         true,
		TotalHT:         decimal.Zero,
		DiscountAmount:  decimal.Zero,
		NetHT:           decimal.Zero,
		TotalTVA:        decimal.Zero,
		TotalTTC:        decimal.Zero,
		PaidAmount:      decimal.Zero,
		Balance:         decimal.Zero,
		DepositsApplied: decimal.Zero,
		TVADetails:      []totals.Band{},
	}
}

// Options returns the discount and deposit settings of the document.
func (d *Document) Options() totals.Options {
	opts := totals.Options{
		DiscountValue:  d.DiscountValue,
		DepositPercent: d.DepositPercent,
	}
	if d.DiscountType != nil {
		opts.DiscountType = *d.DiscountType
	}
	return opts
}

// ApplyTotals copies a computation result onto the document and its items.
// Items and res.Lines must be index-aligned.
func (d *Document) ApplyTotals(res totals.Result) {
	for i := range d.Items {
		if i < len(res.Lines) {
			d.Items[i].ApplyTotals(res.Lines[i])
		}
	}
	d.TotalHT = res.TotalHT
	d.DiscountAmount = res.DiscountAmount
	d.NetHT = res.NetHT
	d.TotalTVA = res.TotalTVA
	d.TotalTTC = res.TotalTTC
	d.TVADetails = res.Bands
	d.DepositAmount = res.DepositAmount
	d.RecomputeBalance()
}

// RecomputeBalance sets balance = totalTTC - paidAmount. Deposits applied
// to a final invoice are deducted as well, never below zero.
func (d *Document) RecomputeBalance() {
	d.Balance = d.TotalTTC.Sub(d.PaidAmount)
	if d.DepositsApplied.IsPositive() {
		d.Balance = types.Max(decimal.Zero, d.Balance.Sub(d.DepositsApplied))
	}
}

// Lines returns the pricing inputs of the items.
func (d *Document) Lines() []totals.Line {
	out := make([]totals.Line, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.Line()
	}
	return out
}

// Recalculate recomputes every total from the items and the document options.
func (d *Document) Recalculate() {
	d.ApplyTotals(totals.Calculate(d.Lines(), d.Options()))
}

// IsTerminal reports whether no further transition is possible.
func (d *Document) IsTerminal() bool {
	return len(transitions[d.Status]) == 0
}

// Item is one line of a document.
type Item struct {
	ID         id.ID `db:"id" json:"id"`
	DocumentID id.ID `db:"document_id" json:"documentId"`
	Position   int   `db:"position" json:"position"`

	Reference   *string `db:"reference" json:"reference,omitempty"`
	Designation string  `db:"designation" json:"designation"`
	Description *string `db:"description" json:"description,omitempty"`
	Unit        string  `db:"unit" json:"unit"`

	Quantity        types.Quantity  `db:"quantity" json:"quantity"`
	UnitPriceHT     types.Money     `db:"unit_price_ht" json:"unitPriceHT"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discountPercent"`
	TVARate         decimal.Decimal `db:"tva_rate" json:"tvaRate"`

	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	TotalHT        types.Money `db:"total_ht" json:"totalHT"`
	TotalTVA       types.Money `db:"total_tva" json:"totalTVA"`
	TotalTTC       types.Money `db:"total_ttc" json:"totalTTC"`

	CatalogItemID     *id.ID `db:"catalog_item_id" json:"catalogItemId,omitempty"`
	SourceOrderItemID *id.ID `db:"source_order_item_id" json:"sourceOrderItemId,omitempty"`

	// Delivery tracking, filled on delivery-note lines
	OrderedQty        *types.Quantity `db:"ordered_qty" json:"orderedQty,omitempty"`
	DeliveredQty      *types.Quantity `db:"delivered_qty" json:"deliveredQty,omitempty"`
	TotalDeliveredQty *types.Quantity `db:"total_delivered_qty" json:"totalDeliveredQty,omitempty"`
	RemainingQty      *types.Quantity `db:"remaining_qty" json:"remainingQty,omitempty"`
}

// Default item values.
const DefaultUnit = "pcs"

// DefaultTVARate is the standard VAT rate applied when none is given.
var DefaultTVARate = decimal.NewFromInt(20)

// Line returns the pricing input of the item.
func (it *Item) Line() totals.Line {
	return totals.Line{
		Quantity:        it.Quantity,
		UnitPriceHT:     it.UnitPriceHT,
		DiscountPercent: it.DiscountPercent,
		TVARate:         it.TVARate,
	}
}

// ApplyTotals copies line totals onto the item.
func (it *Item) ApplyTotals(lt totals.LineTotals) {
	it.DiscountAmount = lt.DiscountAmount
	it.TotalHT = lt.TotalHT
	it.TotalTVA = lt.TotalTVA
	it.TotalTTC = lt.TotalTTC
}

// Summary is the compact view of a related document.
type Summary struct {
	ID       id.ID       `db:"id" json:"id"`
	Type     Type        `db:"type" json:"type"`
	Number   string      `db:"number" json:"number"`
	Status   Status      `db:"status" json:"status"`
	Date     time.Time   `db:"date" json:"date"`
	TotalTTC types.Money `db:"total_ttc" json:"totalTTC"`
}

// SummaryOf builds the summary of d.
func SummaryOf(d *Document) Summary {
	return Summary{ID: d.ID, Type: d.Type, Number: d.Number, Status: d.Status, Date: d.Date, TotalTTC: d.TotalTTC}
}

// PaymentMethod is how a payment was settled.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCheck        PaymentMethod = "CHECK"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCard         PaymentMethod = "CARD"
	MethodOther        PaymentMethod = "OTHER"
)

// IsValid reports whether m is a known method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodCheck, MethodBankTransfer, MethodCard, MethodOther:
		return true
	}
	return false
}

// Payment is an amount received against an invoice.
type Payment struct {
	ID         id.ID         `db:"id" json:"id"`
	DocumentID id.ID         `db:"document_id" json:"documentId"`
	Amount     types.Money   `db:"amount" json:"amount"`
	Method     PaymentMethod `db:"method" json:"method"`
	Reference  *string       `db:"reference" json:"reference,omitempty"`
	PaidAt     time.Time     `db:"paid_at" json:"paidAt"`
	Notes      *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
	CreatedBy  *string       `db:"created_by" json:"createdBy,omitempty"`
}

// Detail is a document with everything the detail view shows.
type Detail struct {
	*Document
	Payments []Payment `json:"payments"`
	Parent   *Summary  `json:"parent,omitempty"`
	Children []Summary `json:"children"`
}
