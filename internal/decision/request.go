// Package decision holds the Request/Decision/Response entities (§3) and
// the RuleContext builder that turns a parsed request into the named
// variable environment the rule engine evaluates against (§4.2).
package decision

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/riskcore/decisioncore/internal/decisionerr"
)

const MaxRequestBodyBytes = 8 * 1024

var validate = validator.New()

// Transaction sub-record (§3).
type Transaction struct {
	Amount            float64 `json:"amount" validate:"gte=0.01,lte=1000000"`
	Currency          string  `json:"currency" validate:"len=3"`
	MerchantID        string  `json:"merchant_id" validate:"required,max=50"`
	MerchantCategory  int     `json:"merchant_category" validate:"gt=0,lte=65535"`
	POSEntryMode      string  `json:"pos_entry_mode" validate:"max=20"`
}

// Card sub-record.
type Card struct {
	Token          string `json:"token" validate:"max=100"`
	IssuerCountry  string `json:"issuer_country" validate:"len=2"`
	CardBrand      string `json:"card_brand" validate:"max=20"`
}

// Device sub-record.
type Device struct {
	IP          string `json:"ip" validate:"required,ip"`
	Fingerprint string `json:"fingerprint" validate:"max=100"`
	UserAgent   string `json:"user_agent" validate:"max=500"`
}

// Customer sub-record.
type Customer struct {
	ID              string  `json:"id" validate:"required,max=50"`
	RiskScore       float64 `json:"risk_score" validate:"gte=0,lte=100"`
	AccountAgeDays  int     `json:"account_age_days" validate:"gte=0,lte=36500"`
}

// Request is the fully parsed, validated, immutable decision input (§3).
type Request struct {
	RequestID   string      `json:"request_id" validate:"required,max=100"`
	TimestampMs int64       `json:"timestamp" validate:"required"`
	Transaction Transaction `json:"transaction" validate:"required"`
	Card        Card        `json:"card"`
	Device      Device      `json:"device" validate:"required"`
	Customer    Customer    `json:"customer" validate:"required"`
}

// ParseRequest parses and validates a raw decision-input document,
// enforcing the §6 body-size limit and the §3 field contracts.
func ParseRequest(body []byte, now time.Time) (*Request, error) {
	if len(body) == 0 {
		return nil, decisionerr.New("orchestrator", decisionerr.InvalidRequest, "empty request body")
	}
	if len(body) > MaxRequestBodyBytes {
		return nil, decisionerr.New("orchestrator", decisionerr.InvalidRequest, "request body exceeds 8KB limit")
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, decisionerr.Wrap("orchestrator", decisionerr.InvalidDocument, "malformed request document", err)
	}

	if err := validate.Struct(&req); err != nil {
		return nil, decisionerr.Wrap("orchestrator", decisionerr.InvalidRequest, firstValidationMessage(err), err)
	}
	if req.TimestampMs > now.Add(time.Hour).UnixMilli() {
		return nil, decisionerr.New("orchestrator", decisionerr.InvalidRequest, "timestamp too far in the future")
	}
	if net.ParseIP(req.Device.IP) == nil {
		return nil, decisionerr.New("orchestrator", decisionerr.InvalidRequest, "device.ip is not a valid address")
	}

	return &req, nil
}

func firstValidationMessage(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
	return "validation failed"
}

// TextFields returns the text-bearing fields the pattern matcher scans
// per §4.3's match_transaction contract.
func (r *Request) TextFields() map[string]string {
	return map[string]string{
		"ip_address":         r.Device.IP,
		"device_fingerprint": r.Device.Fingerprint,
		"user_agent":         r.Device.UserAgent,
		"merchant_id":        r.Transaction.MerchantID,
		"card_token":         r.Card.Token,
		"issuer_country":     r.Card.IssuerCountry,
		"card_brand":         r.Card.CardBrand,
		"customer_id":        r.Customer.ID,
		"currency":           r.Transaction.Currency,
		"pos_entry_mode":     r.Transaction.POSEntryMode,
	}
}

// FeatureCacheKey builds the five-minute-bucketed lookup key of §4.2:
// features:{customer_id}:{merchant_id}:{floor(timestamp_ms/1000/300)}.
func (r *Request) FeatureCacheKey() string {
	bucket := r.TimestampMs / 1000 / 300
	return fmt.Sprintf("features:%s:%s:%d", r.Customer.ID, r.Transaction.MerchantID, bucket)
}
