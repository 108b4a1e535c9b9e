package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/core/types"
	"docflow/internal/domain/totals"
)

var hundred = decimal.NewFromInt(100)

// ItemInput is one line as supplied by a caller.
type ItemInput struct {
	Reference       *string
	Designation     string
	Description     *string
	Unit            string
	Quantity        types.Quantity
	UnitPriceHT     types.Money
	DiscountPercent *decimal.Decimal
	TVARate         *decimal.Decimal
	CatalogItemID   *id.ID
}

// DeliveryInfo carries the delivery fields shared by create and update.
type DeliveryInfo struct {
	DeliveryDate    *time.Time
	DeliveryAddress *string
	DeliveryCity    *string
	DeliveryNotes   *string
}

// CreateInput describes a new document.
type CreateInput struct {
	Type Type
	Mode Mode

	// LegacyNonDraft marks callers that sent isDraft=false without the issue
	// flag. They are numbered like ModeIssue.
	LegacyNonDraft bool

	Date       *time.Time
	ValidUntil *time.Time
	DueDate    *time.Time

	ClientID  *id.ID
	ProjectID *id.ID
	ParentID  *id.ID

	DiscountType   *totals.DiscountType
	DiscountValue  *decimal.Decimal
	DepositPercent *decimal.Decimal

	Notes      *string
	Conditions *string
	DeliveryInfo
	ReceivedBy *string
	SignedBy   *string

	Items []ItemInput
}

// UpdateInput is a partial patch. Nil fields are left unchanged.
type UpdateInput struct {
	// Version, when set, must match the stored version.
	Version *int

	Status *Status
	Reason string

	Date       *time.Time
	ValidUntil *time.Time
	DueDate    *time.Time

	ClientID  *id.ID
	ProjectID *id.ID

	DiscountType   *totals.DiscountType
	DiscountValue  *decimal.Decimal
	DepositPercent *decimal.Decimal

	Notes      *string
	Conditions *string
	DeliveryInfo
	ReceivedBy *string
	SignedBy   *string

	// Items replaces every line when non-nil.
	Items *[]ItemInput
}

// IsCancellationOnly reports whether the patch does nothing but cancel.
func (in UpdateInput) IsCancellationOnly() bool {
	if in.Status == nil || *in.Status != StatusCancelled {
		return false
	}
	patch := in
	patch.Status = nil
	patch.Reason = ""
	patch.Version = nil
	return patch.isEmpty()
}

func (in UpdateInput) isEmpty() bool {
	return in.Status == nil && in.Date == nil && in.ValidUntil == nil && in.DueDate == nil &&
		in.ClientID == nil && in.ProjectID == nil &&
		in.DiscountType == nil && in.DiscountValue == nil && in.DepositPercent == nil &&
		in.Notes == nil && in.Conditions == nil &&
		in.DeliveryDate == nil && in.DeliveryAddress == nil && in.DeliveryCity == nil && in.DeliveryNotes == nil &&
		in.ReceivedBy == nil && in.SignedBy == nil && in.Items == nil
}

func (in UpdateInput) touchesPricing() bool {
	return in.Items != nil || in.DiscountType != nil || in.DiscountValue != nil || in.DepositPercent != nil
}

// ConvertItem selects a source line and the quantity to carry over.
type ConvertItem struct {
	ItemID   id.ID
	Quantity types.Quantity
}

// ConvertInput describes a conversion of a document into its successor.
type ConvertInput struct {
	TargetType Type

	// Items restricts the conversion to the listed lines. Empty means all lines.
	Items []ConvertItem

	DueDate *time.Time
	DeliveryInfo
	Reason *string
}

func validateItems(items []ItemInput) error {
	for i, it := range items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

		if strings.TrimSpace(it.Designation) == "" {
			return apperror.NewValidation("designation is required").WithDetail("field", field("designation"))
		}
		if !it.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be greater than zero").WithDetail("field", field("quantity"))
		}
		if it.UnitPriceHT.IsNegative() {
			return apperror.NewValidation("unit price must not be negative").WithDetail("field", field("unitPriceHT"))
		}
		if it.DiscountPercent != nil && (it.DiscountPercent.IsNegative() || it.DiscountPercent.GreaterThan(hundred)) {
			return apperror.NewValidation("discount percent must be between 0 and 100").WithDetail("field", field("discountPercent"))
		}
		if it.TVARate != nil && it.TVARate.IsNegative() {
			return apperror.NewValidation("VAT rate must not be negative").WithDetail("field", field("tvaRate"))
		}
	}
	return nil
}

func validatePricing(dt *totals.DiscountType, dv, deposit *decimal.Decimal) error {
	if dt != nil && *dt != "" && !dt.IsValid() {
		return apperror.NewValidation(fmt.Sprintf("unknown discount type %q", *dt)).WithDetail("field", "discountType")
	}
	if dv != nil && dv.IsNegative() {
		return apperror.NewValidation("discount value must not be negative").WithDetail("field", "discountValue")
	}
	if dt != nil && *dt == totals.DiscountPercentage && dv != nil && dv.GreaterThan(hundred) {
		return apperror.NewValidation("percentage discount must not exceed 100").WithDetail("field", "discountValue")
	}
	if deposit != nil && (deposit.IsNegative() || deposit.GreaterThan(hundred)) {
		return apperror.NewValidation("deposit percent must be between 0 and 100").WithDetail("field", "depositPercent")
	}
	return nil
}

// checkDiscount validates the global discount of a priced document against
// its merged discount type and its total before discount.
func checkDiscount(d *Document) error {
	if d.DiscountType == nil || d.DiscountValue == nil {
		return nil
	}
	switch *d.DiscountType {
	case totals.DiscountPercentage:
		if d.DiscountValue.GreaterThan(hundred) {
			return apperror.NewValidation("percentage discount must not exceed 100").WithDetail("field", "discountValue")
		}
	case totals.DiscountFixed:
		if d.DiscountAmount.GreaterThan(d.TotalHT) {
			return apperror.NewValidation("fixed discount must not exceed the total before discount").
				WithDetail("field", "discountValue").
				WithDetail("totalHT", d.TotalHT.StringFixed(2))
		}
	}
	return nil
}

// buildItems turns inputs into positioned items of docID.
func buildItems(docID id.ID, inputs []ItemInput) []Item {
	items := make([]Item, len(inputs))
	for i, in := range inputs {
		unit := strings.TrimSpace(in.Unit)
		if unit == "" {
			unit = DefaultUnit
		}
		discount := decimal.Zero
		if in.DiscountPercent != nil {
			discount = *in.DiscountPercent
		}
		rate := DefaultTVARate
		if in.TVARate != nil {
			rate = *in.TVARate
		}
		items[i] = Item{
			ID:              id.New(),
			DocumentID:      docID,
			Position:        i,
			Reference:       in.Reference,
			Designation:     strings.TrimSpace(in.Designation),
			Description:     in.Description,
			Unit:            unit,
			Quantity:        in.Quantity,
			UnitPriceHT:     in.UnitPriceHT,
			DiscountPercent: discount,
			TVARate:         rate,
			CatalogItemID:   in.CatalogItemID,
		}
	}
	return items
}
