package documents

import (
	"context"

	"docflow/internal/core/id"
	"docflow/internal/domain/totals"
)

// IntegrityReport is the result of re-checking a stored document.
type IntegrityReport struct {
	DocumentID    id.ID                `json:"documentId"`
	Number        string               `json:"number"`
	IsValid       bool                 `json:"isValid"`
	StoredHash    string               `json:"storedHash,omitempty"`
	CurrentHash   string               `json:"currentHash,omitempty"`
	Discrepancies []totals.Discrepancy `json:"discrepancies"`
	Note          string               `json:"note,omitempty"`
}

// VerifyIntegrity recomputes the content hash and totals of a document and
// compares them with the stored values.
func (s *Service) VerifyIntegrity(ctx context.Context, docID id.ID) (*IntegrityReport, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	stored := totals.Stored{
		Lines:    make([]totals.LineTotals, len(doc.Items)),
		TotalHT:  doc.TotalHT,
		NetHT:    doc.NetHT,
		TotalTVA: doc.TotalTVA,
		TotalTTC: doc.TotalTTC,
	}
	for i, it := range doc.Items {
		stored.Lines[i] = totals.LineTotals{
			DiscountAmount: it.DiscountAmount,
			TotalHT:        it.TotalHT,
			TotalTVA:       it.TotalTVA,
			TotalTTC:       it.TotalTTC,
		}
	}

	report := &IntegrityReport{
		DocumentID:    doc.ID,
		Number:        doc.Number,
		Discrepancies: totals.Verify(stored, totals.Calculate(doc.Lines(), doc.Options())),
	}
	if report.Discrepancies == nil {
		report.Discrepancies = []totals.Discrepancy{}
	}

	if doc.ContentHash == nil {
		report.Note = "document has not been issued"
		report.IsValid = len(report.Discrepancies) == 0
		return report, nil
	}

	report.StoredHash = *doc.ContentHash
	report.CurrentHash = ContentHash(doc)
	report.IsValid = report.StoredHash == report.CurrentHash && len(report.Discrepancies) == 0
	return report, nil
}
