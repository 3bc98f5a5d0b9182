package decision

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest(t *testing.T) []byte {
	t.Helper()
	req := map[string]interface{}{
		"request_id": "req-1",
		"timestamp":  time.Now().UnixMilli(),
		"transaction": map[string]interface{}{
			"amount": 100.0, "currency": "USD", "merchant_id": "m1",
			"merchant_category": 5411, "pos_entry_mode": "chip",
		},
		"card": map[string]interface{}{"token": "tok", "issuer_country": "US", "card_brand": "visa"},
		"device": map[string]interface{}{"ip": "8.8.8.8", "fingerprint": "fp1", "user_agent": "ua"},
		"customer": map[string]interface{}{"id": "c1", "risk_score": 25.0, "account_age_days": 365},
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return b
}

func TestParseRequestValid(t *testing.T) {
	req, err := ParseRequest(sampleRequest(t), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.RequestID)
	assert.True(t, req.TextFields()["ip_address"] == "8.8.8.8")
}

func TestParseRequestRejectsOversizedBody(t *testing.T) {
	big := make([]byte, MaxRequestBodyBytes+1)
	_, err := ParseRequest(big, time.Now())
	require.Error(t, err)
}

func TestParseRequestRejectsMissingCustomerID(t *testing.T) {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(sampleRequest(t), &m))
	m["customer"].(map[string]interface{})["id"] = ""
	b, err := json.Marshal(m)
	require.NoError(t, err)

	_, err = ParseRequest(b, time.Now())
	require.Error(t, err)
}

func TestBuildRuleContextEvaluable(t *testing.T) {
	req, err := ParseRequest(sampleRequest(t), time.Now())
	require.NoError(t, err)

	ctx := BuildRuleContext(req, DefaultDerivedFeatures(req.Transaction.Amount))
	assert.True(t, ctx.IsEvaluable())
	assert.Equal(t, 100.0, ctx.Env()["amount"])
}

func TestFeatureCacheKeyBucketing(t *testing.T) {
	req, err := ParseRequest(sampleRequest(t), time.Now())
	require.NoError(t, err)
	key := req.FeatureCacheKey()
	assert.Contains(t, key, "features:c1:m1:")
}
