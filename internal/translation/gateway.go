package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/sync/semaphore"

	"lingorelay/pkg/types"
)

// Status tells callers how Result.Text was produced.
type Status string

const (
	StatusTranslated  Status = "translated"
	StatusDegraded    Status = "degraded"
	StatusPassthrough Status = "passthrough"
	StatusDisabled    Status = "disabled"
)

// Result is the outcome of one gateway call. Text is never empty for a non-empty input:
// a failed translation carries the original text and the failure reason.
type Result struct {
	Text   string
	Status Status
	Reason string
}

// Degraded reports whether Text is the untranslated original because translation failed.
func (r Result) Degraded() bool { return r.Status == StatusDegraded }

// GatewayConfig bounds calls toward the translator.
type GatewayConfig struct {
	Timeout       time.Duration
	MaxConcurrent int64
	DetectSource  bool
}

// Gateway validates pairs and applies timeout, concurrency and fallback policy around a
// Translator.
// ARCHITECTURAL DISCOVERY: the only error returned is ErrUnsupportedPair, every capability
// failure becomes a degraded Result so the relay always has something to deliver
type Gateway struct {
	catalog    *Catalog
	translator Translator
	slots      *semaphore.Weighted
	cfg        GatewayConfig
	logger     *slog.Logger
}

// NewGateway wires a translator behind the catalog.
func NewGateway(catalog *Catalog, translator Translator, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Gateway{
		catalog:    catalog,
		translator: translator,
		slots:      semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:        cfg,
		logger:     logger,
	}
}

func (g *Gateway) Catalog() *Catalog { return g.catalog }

// Translate converts text from one language to another.
// FUNCTIONAL DISCOVERY: waiting for a free slot counts toward the same timeout as the call
// itself, timeouts are failures and are never retried
func (g *Gateway) Translate(ctx context.Context, text string, from, to types.LanguageCode) (Result, error) {
	pair := types.LanguagePair{Source: from, Target: to}
	if !g.Serves(pair) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedPair, pair)
	}
	if from == to {
		return Result{Text: text, Status: StatusPassthrough}, nil
	}
	model, _ := g.catalog.Model(pair)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if err := g.slots.Acquire(callCtx, 1); err != nil {
		return g.degrade(text, pair, fmt.Errorf("waiting for translator: %w", err)), nil
	}
	defer g.slots.Release(1)

	start := time.Now()
	translated, err := g.translator.Translate(callCtx, Request{Text: text, Pair: pair, Model: model})
	if err == nil && strings.TrimSpace(translated) == "" {
		err = ErrEmptyTranslation
	}
	if err != nil {
		return g.degrade(text, pair, err), nil
	}

	g.logger.Debug("translated", "pair", pair.String(), "model", model, "elapsed", time.Since(start))
	return Result{Text: translated, Status: StatusTranslated}, nil
}

// Serves reports whether Translate accepts pair: a catalog model exists or source and
// target are the same supported language.
func (g *Gateway) Serves(pair types.LanguagePair) bool {
	if pair.Source == pair.Target {
		return g.catalog.IsSupported(pair.Source)
	}
	_, ok := g.catalog.Model(pair)
	return ok
}

// Disabled returns the original text for a client that opted out of translation.
func (g *Gateway) Disabled(text string) Result {
	return Result{Text: text, Status: StatusDisabled}
}

// ResolveSource returns the language to translate a traveler's text from. When detection is
// enabled and whatlanggo reliably identifies another traveler language, that language wins
// over the declared one.
func (g *Gateway) ResolveSource(text string, declared types.LanguageCode) types.LanguageCode {
	if !g.cfg.DetectSource {
		return declared
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return declared
	}
	detected := types.LanguageCode(info.Lang.Iso6391())
	if detected == declared || !g.catalog.IsTravelerLanguage(detected) {
		return declared
	}
	g.logger.Debug("source language corrected", "declared", declared, "detected", detected)
	return detected
}

// Health reports the health of the underlying translator.
func (g *Gateway) Health() HealthStatus {
	return g.translator.Health()
}

func (g *Gateway) degrade(text string, pair types.LanguagePair, err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", g.cfg.Timeout, err)
	}
	reason := fmt.Errorf("%w: %w", ErrTranslationFailed, err).Error()
	g.logger.Warn("translation degraded to original text", "pair", pair.String(), "err", err)
	return Result{Text: text, Status: StatusDegraded, Reason: reason}
}
