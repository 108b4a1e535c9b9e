package documents

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Mode selects how a new document is numbered.
type Mode int

const (
	// ModeDraft assigns a temporary token; the document stays editable.
	ModeDraft Mode = iota
	// ModeIssue allocates the next official number and locks the document.
	ModeIssue
)

// DraftPrefix starts every temporary number.
const DraftPrefix = "DRAFT-"

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// DraftNumber builds DRAFT-<TYPE>-<base36 unix ms><4 random base36>, upper-cased.
func DraftNumber(t Type, now time.Time) string {
	var suffix [4]byte
	radix := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			// crypto/rand does not fail on supported platforms; fall back to time entropy
			suffix[i] = base36[(now.UnixNano()>>(i*5))%36]
			continue
		}
		suffix[i] = base36[n.Int64()]
	}
	stamp := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper(DraftPrefix + string(t) + "-" + stamp + string(suffix[:]))
}

// IsDraftNumber reports whether number is a temporary token.
func IsDraftNumber(number string) bool {
	return strings.HasPrefix(number, DraftPrefix)
}

type hashedItem struct {
	Designation string `json:"designation"`
	Quantity    string `json:"quantity"`
	UnitPriceHT string `json:"unitPriceHT"`
	TVARate     string `json:"tvaRate"`
}

type hashedContent struct {
	Type     Type         `json:"type"`
	ClientID string       `json:"clientId"`
	Items    []hashedItem `json:"items"`
	TotalTTC string       `json:"totalTTC"`
}

// ContentHash is the sha256 of the content that becomes immutable at issuance:
// type, client, item pricing and the tax-inclusive total.
func ContentHash(d *Document) string {
	c := hashedContent{
		Type:     d.Type,
		Items:    make([]hashedItem, len(d.Items)),
		TotalTTC: d.TotalTTC.StringFixed(2),
	}
	if d.ClientID != nil {
		c.ClientID = d.ClientID.String()
	}
	for i, it := range d.Items {
		c.Items[i] = hashedItem{
			Designation: it.Designation,
			Quantity:    it.Quantity.String(),
			UnitPriceHT: it.UnitPriceHT.String(),
			TVARate:     it.TVARate.String(),
		}
	}
	// Marshal of plain strings cannot fail.
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
