package router

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MaxToolNameLength and MaxArgsBytes bound registry inputs, mirroring the
// teacher's tool_registry.go guard constants.
const (
	MaxToolNameLength = 256
	MaxArgsBytes       = 1 << 20
)

// ToolSpec describes one registered RPC (spec.md §3). Immutable once
// registered: Register fails with registry.duplicate on a repeat name.
type ToolSpec struct {
	Name              string
	Description       string
	Permissions       []string
	SideEffects       []string
	DefaultLatencyMs  int
	LatencyJitterMs   int
	NominalCost       float64
	FaultProbability  float64
	Returns           string
	InputSchema       map[string]any // JSON Schema, validated via jsonschema/v5 at dispatch
}

// Handler executes a tool call and returns its result payload.
type Handler func(args map[string]any) (map[string]any, error)

// ToolProvider lets a twin register a batch of specs plus prefix-routed
// dispatch in one call (spec.md §4.2 register_tool_provider), mirroring the
// teacher's PrefixToolProvider idiom.
type ToolProvider interface {
	Specs() []ToolSpec
	Prefixes() []string
	Call(name string, args map[string]any) (map[string]any, error)
	// State returns a JSON-marshalable summary of the twin's current data,
	// used only to build state_snapshot's include_state digest (spec.md §4.2).
	State() map[string]any
}

type registeredTool struct {
	spec    ToolSpec
	handler Handler
}

// Registry is the name -> ToolSpec map plus dispatch table. Safe for
// concurrent reads; writes (registration) are expected only at session
// construction time but are still guarded.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*registeredTool
	aliases   map[string]string // alias name -> canonical name
	providers []ToolProvider
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*registeredTool),
		aliases: make(map[string]string),
	}
}

// Register adds a single tool. Returns registry.duplicate if the name (or
// a reserved router method name) is already taken.
func (r *Registry) Register(spec ToolSpec, handler Handler) error {
	if len(spec.Name) == 0 || len(spec.Name) > MaxToolNameLength {
		return Errorf("invalid_args", "tool name length out of bounds: %q", spec.Name)
	}
	if ReservedNames[spec.Name] {
		return Errorf("registry.duplicate", "tool name %q is reserved", spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; exists {
		return Errorf("registry.duplicate", "tool %q already registered", spec.Name)
	}
	r.tools[spec.Name] = &registeredTool{spec: spec, handler: handler}
	return nil
}

// RegisterProvider registers every spec a ToolProvider exposes, routing
// calls for any of its declared prefixes to the provider's Call method.
// Every spec name must start with one of Prefixes(), catching a twin that
// forgot to namespace a tool before it ever reaches the registry.
func (r *Registry) RegisterProvider(p ToolProvider) error {
	prefixes := p.Prefixes()
	for _, spec := range p.Specs() {
		spec := spec
		namespaced := false
		for _, prefix := range prefixes {
			if strings.HasPrefix(spec.Name, prefix) {
				namespaced = true
				break
			}
		}
		if !namespaced {
			return Errorf("invalid_args", "tool %q is outside its provider's declared prefixes %v", spec.Name, prefixes)
		}
		if err := r.Register(spec, func(args map[string]any) (map[string]any, error) {
			return p.Call(spec.Name, args)
		}); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.providers = append(r.providers, p)
	r.mu.Unlock()
	return nil
}

// StateDigest returns a sha256 hex digest over a canonical JSON encoding of
// every registered provider's State(), keyed by its declared prefixes joined with ",",
// for state_snapshot's include_state option (spec.md §4.2). Providers are
// visited in registration order but the digest sorts by key first, so it is
// stable regardless of registration order.
func (r *Registry) StateDigest() string {
	r.mu.RLock()
	providers := make([]ToolProvider, len(r.providers))
	copy(providers, r.providers)
	r.mu.RUnlock()

	combined := make(map[string]map[string]any, len(providers))
	for _, p := range providers {
		key := strings.Join(p.Prefixes(), ",")
		combined[key] = p.State()
	}
	raw, err := json.Marshal(combined)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// RegisterAlias registers a thin forwarder `alias` -> `canonical`, inheriting
// the canonical tool's spec (Design Note "Alias packs").
func (r *Registry) RegisterAlias(alias, canonical string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.tools[canonical]
	if !ok {
		return Errorf("unknown_tool", "cannot alias to unknown tool %q", canonical)
	}
	if _, exists := r.tools[alias]; exists {
		return Errorf("registry.duplicate", "tool %q already registered", alias)
	}
	aliasSpec := target.spec
	aliasSpec.Name = alias
	r.tools[alias] = &registeredTool{spec: aliasSpec, handler: target.handler}
	r.aliases[alias] = canonical
	return nil
}

// Get returns the spec and handler for name.
func (r *Registry) Get(name string) (ToolSpec, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return ToolSpec{}, nil, false
	}
	return t.spec, t.handler, true
}

// All returns every registered spec, sorted by name.
func (r *Registry) All() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Search ranks tools by (name-prefix match, description token overlap),
// stable tiebreak on name (spec.md §4.2 search_tools).
func (r *Registry) Search(query string, topK int) []ToolSpec {
	query = strings.ToLower(strings.TrimSpace(query))
	queryTokens := strings.Fields(query)
	all := r.All()
	type scored struct {
		spec  ToolSpec
		score int
	}
	results := make([]scored, 0, len(all))
	for _, spec := range all {
		score := 0
		if query != "" && strings.HasPrefix(strings.ToLower(spec.Name), query) {
			score += 100
		}
		descLower := strings.ToLower(spec.Description)
		for _, tok := range queryTokens {
			if strings.Contains(descLower, tok) {
				score++
			}
		}
		if query == "" || score > 0 {
			results = append(results, scored{spec, score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].spec.Name < results[j].spec.Name
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	out := make([]ToolSpec, len(results))
	for i, s := range results {
		out[i] = s.spec
	}
	return out
}

func (t ToolSpec) String() string {
	return fmt.Sprintf("%s: %s", t.Name, t.Description)
}
