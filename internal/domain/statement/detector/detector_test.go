package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
)

func configsForTest() []bankcfg.ParserConfig {
	return []bankcfg.ParserConfig{
		{BankCode: "HDFC", Priority: 10, DetectionKeywords: []string{"HDFC BANK", "HDFC0"}},
		{BankCode: "SBIN", Priority: 10, DetectionKeywords: []string{"STATE BANK OF INDIA", "SBIN0"}},
		{BankCode: "ICICI", Priority: 20, DetectionKeywords: []string{"ICICI BANK"}},
	}
}

func TestDetect(t *testing.T) {
	configs := configsForTest()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"exact match", "Account Statement HDFC BANK Ltd.", "HDFC"},
		{"case insensitive", "statement from hdfc bank ltd", "HDFC"},
		{"ifsc prefix", "IFSC: SBIN0001234 Branch Mumbai", "SBIN"},
		{"no match", "CREDIT UNION OF NOWHERE", bankcfg.BankUnknown},
		{"empty text", "", bankcfg.BankUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text, configs))
		})
	}
}

func TestDetect_LongestKeywordWinsWithinTier(t *testing.T) {
	// Both HDFC and SBIN are priority 10; the longer keyword is the more
	// specific signal and must win regardless of config order.
	text := "HDFC0 branch transfer received from STATE BANK OF INDIA"
	assert.Equal(t, "SBIN", Detect(text, configsForTest()))
}

func TestDetect_PriorityTierBeatsLongerKeyword(t *testing.T) {
	// ICICI's keyword is longer but sits in a lower priority tier, so a
	// priority-10 match must not be displaced.
	text := "HDFC0 payment to ICICI BANK account"
	assert.Equal(t, "HDFC", Detect(text, configsForTest()))
}

func TestDetect_Deterministic(t *testing.T) {
	configs := configsForTest()
	text := "STATE BANK OF INDIA savings statement"
	first := Detect(text, configs)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Detect(text, configs))
	}
}

func TestDetectMatch_ReportsKeyword(t *testing.T) {
	m := DetectMatch("welcome to hdfc bank netbanking", configsForTest())
	assert.Equal(t, "HDFC", m.BankCode)
	assert.Equal(t, "hdfc bank", m.Keyword)
}

func TestDetect_NoConfigs(t *testing.T) {
	assert.Equal(t, bankcfg.BankUnknown, Detect("HDFC BANK", nil))
}
