// Package models holds the shared data model described in spec.md section 3:
// ProviderConfig, ProviderState, AppConfig, and RectifierConfig.
package models

// ProviderFormat is the wire format a provider speaks.
type ProviderFormat string

const (
	FormatAnthropic ProviderFormat = "anthropic"
	FormatOpenAI    ProviderFormat = "openai"
)

// ProviderConfig describes one configured fallback upstream. The primary
// is not a ProviderConfig; its URL is fixed on routing.Engine.
type ProviderConfig struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	BaseURL      string            `json:"baseUrl"`
	APIKey       string            `json:"apiKey"`
	AuthHeader   string            `json:"authHeader"`
	Headers      map[string]string `json:"headers,omitempty"`
	ModelMapping map[string]string `json:"modelMapping,omitempty"`
	Format       ProviderFormat    `json:"format"`
	Disabled     bool              `json:"disabled"`
	Retry        int               `json:"retry"`
}

// Validate reports whether the provider satisfies the invariants from
// spec.md section 3: name/baseUrl/apiKey non-empty, format in the known
// set. Callers drop providers that fail validation at load time.
func (p ProviderConfig) Validate() error {
	if p.Name == "" {
		return errMissingField("name")
	}
	if p.BaseURL == "" {
		return errMissingField("baseUrl")
	}
	if p.APIKey == "" {
		return errMissingField("apiKey")
	}
	switch p.Format {
	case FormatAnthropic, FormatOpenAI, "":
	default:
		return errInvalidFormat(p.Format)
	}
	return nil
}

// EffectiveAuthHeader returns the header name to carry credentials,
// defaulting to x-api-key per spec.md section 3.
func (p ProviderConfig) EffectiveAuthHeader() string {
	if p.AuthHeader == "" {
		return "x-api-key"
	}
	return p.AuthHeader
}

// EffectiveFormat defaults an empty format to anthropic.
func (p ProviderConfig) EffectiveFormat() ProviderFormat {
	if p.Format == "" {
		return FormatAnthropic
	}
	return p.Format
}

// MappedModel substitutes the upstream model id per provider.modelMapping,
// returning the original id when there is no mapping entry.
func (p ProviderConfig) MappedModel(clientModel string) string {
	if mapped, ok := p.ModelMapping[clientModel]; ok && mapped != "" {
		return mapped
	}
	return clientModel
}

// ProviderState is the per-provider circuit breaker state, persisted under
// the "provider-state:<name>" key.
type ProviderState struct {
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	LastFailure         *int64 `json:"lastFailure"`
	LastSuccess         *int64 `json:"lastSuccess"`
	CooldownUntil       *int64 `json:"cooldownUntil"`
}

// RectifierConfig holds the rectifier's master switch and its three
// independent feature flags, per spec.md section 3.
type RectifierConfig struct {
	Enabled                   bool `json:"enabled"`
	RequestThinkingSignature  bool `json:"requestThinkingSignature"`
	RequestThinkingBudget     bool `json:"requestThinkingBudget"`
	RequestToolUseConcurrency bool `json:"requestToolUseConcurrency"`
}

// DefaultRectifierConfig mirrors the historically-safe default: every
// feature is on once the master switch is on.
func DefaultRectifierConfig() RectifierConfig {
	return RectifierConfig{
		Enabled:                   true,
		RequestThinkingSignature:  true,
		RequestThinkingBudget:     true,
		RequestToolUseConcurrency: true,
	}
}

// Token is a client allow-list entry. It has no custom unmarshaler; the
// config loader (config.coerceToken) builds it from either a bare string or
// a {token, note} object per spec.md section 4.6.
type Token struct {
	Token string `json:"token"`
	Note  string `json:"note,omitempty"`
}

// AppConfig is the per-request snapshot rebuilt from the KV store on every
// request, per spec.md section 3's "no cache consistency problem" design.
type AppConfig struct {
	Debug                    bool
	Providers                []ProviderConfig
	AllowedTokens            []Token
	MaxCooldownSeconds       int
	AnthropicPrimaryDisabled bool
	Rectifier                RectifierConfig
	LoadedAtUnixMilli        int64
}

type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

func errMissingField(field string) error {
	return validationError{msg: "provider config missing required field: " + field}
}

func errInvalidFormat(f ProviderFormat) error {
	return validationError{msg: "provider config has invalid format: " + string(f)}
}
