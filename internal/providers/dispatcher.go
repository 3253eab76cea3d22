package providers

import (
	"context"
	"fmt"

	"github.com/nifi-agent/engine/internal/config"
	"github.com/nifi-agent/engine/internal/engerr"
	"github.com/nifi-agent/engine/internal/messages"
	"github.com/nifi-agent/engine/internal/schema"
)

var knownProviders = map[string]bool{
	"openai": true, "anthropic": true, "gemini": true, "perplexity": true,
}

// Dispatcher selects an adapter by provider name, validates the request
// before making any network call, and surfaces a uniform Response or a
// typed *engerr.Error.
type Dispatcher struct {
	cfg      *config.Config
	adapters map[string]Adapter
}

func NewDispatcher(cfg *config.Config) *Dispatcher {
	return &Dispatcher{cfg: cfg, adapters: make(map[string]Adapter)}
}

// Register installs the adapter to use for provider. Called once per
// backend at startup; idempotent to repeat (matches the teacher's lazily-
// constructed, safe-to-repeat provider client convention).
func (d *Dispatcher) Register(provider string, adapter Adapter) {
	d.adapters[provider] = adapter
}

// Dispatch validates (provider, model, credential), then invokes the
// registered adapter. An empty model resolves to the registered adapter's
// DefaultModel. Validation failures return without any network call.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	provider, model, systemPrompt string,
	history []messages.Message,
	tools []schema.ToolDef,
) (*Response, *engerr.Error) {
	if !knownProviders[provider] {
		return nil, engerr.Newf(engerr.KindBadRequest, "unknown provider %q", provider)
	}

	pc, _ := d.cfg.ProviderNamed(provider)
	if !pc.Enabled() {
		return nil, engerr.Newf(engerr.KindAuth, "no credential configured for provider %q", provider)
	}
	adapter, ok := d.adapters[provider]
	if model == "" && ok {
		model = adapter.DefaultModel()
	}
	if !pc.AllowsModel(model) {
		return nil, engerr.Newf(engerr.KindModelNotFound, "model %q not in configured list for provider %q", model, provider)
	}

	if !ok {
		return nil, engerr.Newf(engerr.KindBadRequest, "no adapter registered for provider %q", provider)
	}

	resp, err := adapter.Chat(ctx, systemPrompt, history, tools, model)
	if err != nil {
		if e, ok := engerr.As(err); ok {
			return nil, e
		}
		return nil, engerr.New(engerr.KindTransport, fmt.Errorf("%s: %w", provider, err))
	}
	return resp, nil
}
