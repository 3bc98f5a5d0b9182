package decision

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DerivedFeatures holds the variables §4.2 sources from feature lookups
// rather than directly from the request (merchant_risk, hourly_count,
// amount_sum). The orchestrator owns the cache; this struct is its value
// type, keyed by Request.FeatureCacheKey.
type DerivedFeatures struct {
	MerchantRisk float64
	HourlyCount  float64
	AmountSum    float64
}

// defaultDerivedFeatures returns the §4.2 defaults used when nothing is
// cached yet for this customer/merchant/bucket.
func defaultDerivedFeatures(amount float64) DerivedFeatures {
	return DerivedFeatures{MerchantRisk: 0.0, HourlyCount: 1, AmountSum: amount}
}

// FeatureCache is the in-process L1 tier backing the feature-cache
// contract of §4.1/§4.2, grounded on patrickmn/go-cache.
type FeatureCache struct {
	inner *cache.Cache
}

// NewFeatureCache builds a cache with the given default TTL (no expiry
// when ttlSeconds <= 0) and a fixed two-minute cleanup interval, mirroring
// the teacher's go-cache usage pattern.
func NewFeatureCache(ttlSeconds int) *FeatureCache {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &FeatureCache{inner: cache.New(ttl, 2*time.Minute)}
}

// Get returns the cached DerivedFeatures for key, if present and unexpired.
func (f *FeatureCache) Get(key string) (DerivedFeatures, bool) {
	v, ok := f.inner.Get(key)
	if !ok {
		return DerivedFeatures{}, false
	}
	return v.(DerivedFeatures), true
}

// Set stores DerivedFeatures for key using the cache's default TTL.
func (f *FeatureCache) Set(key string, d DerivedFeatures) {
	f.inner.SetDefault(key, d)
}

// RuleContext is the named-variable environment bound into rule
// expressions for exactly one request (§3, §4.2).
type RuleContext struct {
	Amount             float64
	Currency           string
	MerchantID         string
	POSEntryMode       string
	MerchantCategory   float64
	CardToken          string
	IssuerCountry      string
	CardBrand          string
	IPAddress          string
	DeviceFingerprint  string
	UserAgent          string
	CustomerID         string
	CustomerRiskScore  float64
	AccountAgeDays     float64
	MerchantRisk       float64
	HourlyCount        float64
	AmountSum          float64
	IPBlacklistMatch   float64
}

// BuildRuleContext assembles the RuleContext from a parsed Request and its
// derived features, binding exactly the names of §4.2's table.
func BuildRuleContext(r *Request, derived DerivedFeatures) *RuleContext {
	return &RuleContext{
		Amount:            r.Transaction.Amount,
		Currency:          r.Transaction.Currency,
		MerchantID:        r.Transaction.MerchantID,
		POSEntryMode:      r.Transaction.POSEntryMode,
		MerchantCategory:  float64(r.Transaction.MerchantCategory),
		CardToken:         r.Card.Token,
		IssuerCountry:     r.Card.IssuerCountry,
		CardBrand:         r.Card.CardBrand,
		IPAddress:         r.Device.IP,
		DeviceFingerprint: r.Device.Fingerprint,
		UserAgent:         r.Device.UserAgent,
		CustomerID:        r.Customer.ID,
		CustomerRiskScore: r.Customer.RiskScore,
		AccountAgeDays:    float64(r.Customer.AccountAgeDays),
		MerchantRisk:      derived.MerchantRisk,
		HourlyCount:       derived.HourlyCount,
		AmountSum:         derived.AmountSum,
		IPBlacklistMatch:  0,
	}
}

// IsEvaluable reports whether the context satisfies §4.2's minimum
// evaluability contract: customer_id, merchant_id, currency non-empty and
// amount > 0.
func (c *RuleContext) IsEvaluable() bool {
	return c.CustomerID != "" && c.MerchantID != "" && c.Currency != "" && c.Amount > 0
}

// Env returns the expr-language binding environment: a map from the
// exact variable names of §4.2 to their bound values, the same shape the
// teacher's createEvaluationEnvironment builds for alert conditions.
func (c *RuleContext) Env() map[string]interface{} {
	return map[string]interface{}{
		"amount":               c.Amount,
		"currency":             c.Currency,
		"merchant_id":          c.MerchantID,
		"pos_entry_mode":       c.POSEntryMode,
		"merchant_category":    c.MerchantCategory,
		"card_token":           c.CardToken,
		"issuer_country":       c.IssuerCountry,
		"card_brand":           c.CardBrand,
		"ip_address":           c.IPAddress,
		"device_fingerprint":   c.DeviceFingerprint,
		"user_agent":           c.UserAgent,
		"customer_id":          c.CustomerID,
		"customer_risk_score":  c.CustomerRiskScore,
		"account_age_days":     c.AccountAgeDays,
		"merchant_risk":        c.MerchantRisk,
		"hourly_count":         c.HourlyCount,
		"amount_sum":           c.AmountSum,
		"ip_blacklist_match":   c.IPBlacklistMatch,
	}
}

// DefaultDerivedFeatures exposes the §4.2 defaults for callers (the
// orchestrator) to use on a cache miss.
func DefaultDerivedFeatures(amount float64) DerivedFeatures {
	return defaultDerivedFeatures(amount)
}
