// Package config hydrates the in-memory AppConfig snapshot from the KV
// store on every request, per spec.md section 4.6: five keys read
// concurrently, malformed entries downgraded to warnings rather than
// fatal errors. Grounded on the teacher's config.Load, generalized from a
// single-process env-var load into a KV-backed, per-request reload.
package config

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ccfallback/internal/kvstore"
	"ccfallback/internal/logger"
	"ccfallback/internal/models"
)

const defaultMaxCooldownSeconds = 300

// Load reads the five persisted keys from store concurrently and builds an
// AppConfig snapshot. It never returns an error: a malformed or absent key
// degrades to that key's documented default, with a warning logged.
func Load(ctx context.Context, store kvstore.Store) models.AppConfig {
	log := logger.WithComponent("config")

	var (
		providers        []models.ProviderConfig
		allowedTokens    []models.Token
		cooldownSeconds  = defaultMaxCooldownSeconds
		primaryDisabled  bool
		rectifierCfg     = models.DefaultRectifierConfig()
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		providers = loadProviders(gctx, store, log)
		return nil
	})
	g.Go(func() error {
		allowedTokens = loadTokens(gctx, store, log)
		return nil
	})
	g.Go(func() error {
		cooldownSeconds = loadCooldown(gctx, store, log)
		return nil
	})
	g.Go(func() error {
		primaryDisabled = loadPrimaryDisabled(gctx, store, log)
		return nil
	})
	g.Go(func() error {
		rectifierCfg = loadRectifierConfig(gctx, store, log)
		return nil
	})

	// Errors from individual loaders are already logged and defaulted;
	// g.Wait only surfaces cancellation, which we ignore here because a
	// stale-but-safe snapshot beats failing the whole request.
	_ = g.Wait()

	loadedAt := time.Now().UnixMilli()
	log.Debug("config snapshot loaded", "loadedAtUnixMilli", loadedAt)

	return models.AppConfig{
		Debug:                    logger.IsDebug(),
		Providers:                providers,
		AllowedTokens:            allowedTokens,
		MaxCooldownSeconds:       cooldownSeconds,
		AnthropicPrimaryDisabled: primaryDisabled,
		Rectifier:                rectifierCfg,
		LoadedAtUnixMilli:        loadedAt,
	}
}

func loadProviders(ctx context.Context, store kvstore.Store, log interface {
	Warn(string, ...any)
}) []models.ProviderConfig {
	raw, ok, err := store.Get(ctx, kvstore.KeyProviders)
	if err != nil || !ok || raw == "" {
		if err != nil {
			log.Warn("failed to load providers", "error", err.Error())
		}
		return nil
	}

	var entries []models.ProviderConfig
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Warn("malformed providers entry, ignoring", "error", err.Error())
		return nil
	}

	out := make([]models.ProviderConfig, 0, len(entries))
	for _, p := range entries {
		if err := p.Validate(); err != nil {
			log.Warn("dropping invalid provider config", "provider", p.Name, "error", err.Error())
			continue
		}
		out = append(out, p)
	}
	return out
}

func loadTokens(ctx context.Context, store kvstore.Store, log interface {
	Warn(string, ...any)
}) []models.Token {
	raw, ok, err := store.Get(ctx, kvstore.KeyAllowedTokens)
	if err != nil || !ok || raw == "" {
		if err != nil {
			log.Warn("failed to load allowed tokens", "error", err.Error())
		}
		return nil
	}

	var mixed []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &mixed); err != nil {
		log.Warn("malformed allowed_tokens entry, ignoring", "error", err.Error())
		return nil
	}

	out := make([]models.Token, 0, len(mixed))
	for _, item := range mixed {
		tok, ok := coerceToken(item)
		if !ok {
			log.Warn("dropping malformed token entry")
			continue
		}
		out = append(out, tok)
	}
	return out
}

// coerceToken accepts either a bare JSON string or a {token, note} object,
// per spec.md section 4.6.
func coerceToken(raw json.RawMessage) (models.Token, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return models.Token{}, false
		}
		return models.Token{Token: s}, true
	}
	var obj models.Token
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Token != "" {
		return obj, true
	}
	return models.Token{}, false
}

func loadCooldown(ctx context.Context, store kvstore.Store, log interface {
	Warn(string, ...any)
}) int {
	raw, ok, err := store.Get(ctx, kvstore.KeyCooldownDuration)
	if err != nil {
		log.Warn("failed to load cooldown_duration", "error", err.Error())
	}
	if !ok || raw == "" {
		return envCooldownDefault()
	}
	seconds, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if perr != nil || seconds < 0 {
		log.Warn("malformed cooldown_duration, using default", "value", raw)
		return envCooldownDefault()
	}
	return int(seconds)
}

func envCooldownDefault() int {
	raw := strings.TrimSpace(os.Getenv("COOLDOWN_DURATION"))
	if raw == "" {
		return defaultMaxCooldownSeconds
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return defaultMaxCooldownSeconds
	}
	return v
}

func loadPrimaryDisabled(ctx context.Context, store kvstore.Store, log interface {
	Warn(string, ...any)
}) bool {
	raw, ok, err := store.Get(ctx, kvstore.KeyAnthropicPrimaryDisabled)
	if err != nil {
		log.Warn("failed to load anthropic_primary_disabled", "error", err.Error())
	}
	if !ok {
		return false
	}
	return strings.TrimSpace(raw) == "true"
}

func loadRectifierConfig(ctx context.Context, store kvstore.Store, log interface {
	Warn(string, ...any)
}) models.RectifierConfig {
	raw, ok, err := store.Get(ctx, kvstore.KeyRectifierConfig)
	if err != nil {
		log.Warn("failed to load rectifier_config", "error", err.Error())
	}
	if !ok || raw == "" {
		return models.DefaultRectifierConfig()
	}
	var cfg models.RectifierConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		log.Warn("malformed rectifier_config, using default", "error", err.Error())
		return models.DefaultRectifierConfig()
	}
	return cfg
}
