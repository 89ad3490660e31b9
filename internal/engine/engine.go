// Package engine wires every deliberation component into one running
// instance, shared by cmd/cli and cmd/mcpserver so neither reimplements the
// construction order. Grounded on the teacher's cmd/server/initializer.go
// InitializeServer/ServerComponents/Cleanup pattern: an exported components
// struct built by a single constructor function, extracted out of main so
// both entry points (and tests) can build it identically.
package engine

import (
	"fmt"
	"log"
	"os"
	"sync"

	"boardofone/internal/checkpoint"
	"boardofone/internal/config"
	"boardofone/internal/embeddings"
	"boardofone/internal/events"
	"boardofone/internal/graph"
	"boardofone/internal/judge"
	"boardofone/internal/llmbroker"
	"boardofone/internal/persona"
	"boardofone/internal/quality"
	"boardofone/internal/round"
	"boardofone/internal/session"
	"boardofone/internal/vectorstore"
)

// Components holds every wired dependency needed to run deliberation
// sessions.
type Components struct {
	Config      config.Config
	Broker      *llmbroker.Broker
	Embedder    embeddings.Embedder
	VectorStore *vectorstore.Store
	Checkpoint  checkpoint.Store
	Catalog     *persona.Catalog
	Driver      *graph.Driver
	Sessions    *session.Manager

	sinkMu sync.Mutex
	sinks  map[string]*events.Sink
}

// New builds every component from cfg, reading provider API keys from the
// environment (ANTHROPIC_API_KEY, OPENAI_API_KEY, VOYAGE_API_KEY), the same
// env-var-gated feature initialization the teacher's InitializeServer uses
// for its optional embedder/knowledge-graph/context-bridge components.
func New(cfg config.Config) (*Components, error) {
	broker, err := newBroker(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: broker: %w", err)
	}
	log.Printf("boardofone: broker ready (fast=%s strong=%s)", cfg.LLM.FastModel, cfg.LLM.StrongModel)

	embedder := newEmbedder(cfg)

	store, err := vectorstore.New(vectorstore.Config{Embedder: embedder})
	if err != nil {
		return nil, fmt.Errorf("engine: vectorstore: %w", err)
	}

	ckpt, err := newCheckpointStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: checkpoint store: %w", err)
	}
	log.Printf("boardofone: checkpoint backend=%s", cfg.Checkpoint.Backend)

	catalog := persona.DefaultCatalog()
	j := judge.New(broker)
	runner := round.New(broker, embedder, store, j, quality.Config{
		DedupThreshold:         cfg.Quality.DedupThreshold,
		NearIdenticalThreshold: cfg.Quality.NearIdenticalThreshold,
		DominanceShareMax:      cfg.Quality.DominanceShareMax,
	})

	c := &Components{
		sinks: make(map[string]*events.Sink),
	}

	driver := graph.NewDriver(cfg, broker, catalog, runner, c.dispatchEvent)
	mgr := session.New(driver, cfg, ckpt)

	c.Config = cfg
	c.Broker = broker
	c.Embedder = embedder
	c.VectorStore = store
	c.Checkpoint = ckpt
	c.Catalog = catalog
	c.Driver = driver
	c.Sessions = mgr

	return c, nil
}

// Subscribe opens an events.Sink for sessionID and returns a channel of its
// events, for callers (cmd/mcpserver's progress notifications, cmd/cli's
// live output) that want a stream rather than polling Sessions.Status.
// The sink is retired (its channels closed) right after the terminal event
// is dispatched to it; callers that stop reading before then should call
// Unsubscribe to release it.
func (c *Components) Subscribe(sessionID string, buffer int) <-chan events.Event {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	sink, ok := c.sinks[sessionID]
	if !ok {
		sink = events.NewSink(sessionID)
		c.sinks[sessionID] = sink
	}
	return sink.Subscribe(buffer)
}

// Unsubscribe closes and discards the events.Sink for sessionID, if any.
func (c *Components) Unsubscribe(sessionID string) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	if sink, ok := c.sinks[sessionID]; ok {
		sink.Close()
		delete(c.sinks, sessionID)
	}
}

// dispatchEvent is the graph.Driver event callback: it forwards each
// driver-level transition to that session's events.Sink, if one has been
// opened via Subscribe. Sessions nobody is watching incur no sink cost.
func (c *Components) dispatchEvent(ev graph.Event) {
	c.sinkMu.Lock()
	sink, ok := c.sinks[ev.SessionID]
	c.sinkMu.Unlock()
	if !ok {
		return
	}
	sink.Emit(ev.Type, ev.SubProblemIndex, ev.Payload)
	if ev.Type == events.TypeTerminal {
		c.Unsubscribe(ev.SessionID)
	}
}

// Close releases every closeable resource.
func (c *Components) Close() error {
	if c.Checkpoint != nil {
		return c.Checkpoint.Close()
	}
	return nil
}

func newBroker(cfg config.Config) (*llmbroker.Broker, error) {
	fast, fastPricing, err := newClient(cfg.LLM.Provider, cfg.LLM.FastModel)
	if err != nil {
		return nil, err
	}
	strong, strongPricing, err := newClient("anthropic", cfg.LLM.StrongModel)
	if err != nil {
		return nil, err
	}
	return llmbroker.New(llmbroker.Config{
		Fast:          fast,
		FastPricing:   fastPricing,
		Strong:        strong,
		StrongPricing: strongPricing,
		MaxRetries:    cfg.LLM.MaxRetries,
	})
}

// newClient builds a provider client for one tier. The fast tier may be
// served by either provider (spec §4.2's model-agnosticism requirement);
// the strong tier always uses Anthropic, matching the teacher's primary
// provider and config.Default's StrongModel.
func newClient(provider, model string) (llmbroker.Client, llmbroker.Pricing, error) {
	switch provider {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, llmbroker.Pricing{}, fmt.Errorf("OPENAI_API_KEY is required for provider %q", provider)
		}
		client, err := llmbroker.NewOpenAIClient(llmbroker.OpenAIConfig{APIKey: key, Model: model})
		if err != nil {
			return nil, llmbroker.Pricing{}, err
		}
		return client, llmbroker.PricingForModel(model), nil
	default:
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, llmbroker.Pricing{}, fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", provider)
		}
		client, err := llmbroker.NewAnthropicClient(llmbroker.AnthropicConfig{APIKey: key, Model: model})
		if err != nil {
			return nil, llmbroker.Pricing{}, err
		}
		return client, llmbroker.PricingForModel(model), nil
	}
}

func newEmbedder(cfg config.Config) embeddings.Embedder {
	if !cfg.Embeddings.Enabled {
		log.Println("boardofone: embeddings disabled via config, using mock embedder (dedup/novelty degrade to no-op)")
		return embeddings.NewMockEmbedder(8)
	}
	if key := os.Getenv("VOYAGE_API_KEY"); key != "" {
		log.Printf("boardofone: embedder=voyage model=%s", cfg.Embeddings.Model)
		return embeddings.NewCachingEmbedder(embeddings.NewVoyageEmbedder(key, cfg.Embeddings.Model), 0)
	}
	log.Println("boardofone: VOYAGE_API_KEY not set, falling back to mock embedder")
	return embeddings.NewMockEmbedder(8)
}

func newCheckpointStore(cfg config.Config) (checkpoint.Store, error) {
	if cfg.Checkpoint.Backend == "sqlite" {
		return checkpoint.NewSQLiteStore(cfg.Checkpoint.Path, 5000)
	}
	return checkpoint.NewMemoryStore(), nil
}
