// Package browser implements the toy Browser twin (spec.md §4.3.1): a finite
// directed node graph navigated via read/click/back/find.
package browser

import (
	"sort"
	"strings"

	"github.com/haasonsaas/vei/internal/router"
)

// MaxHistory bounds the back-stack so a scenario can't grow it unboundedly.
const MaxHistory = 50

// Node is a single page in the graph.
type Node struct {
	NodeID      string            `json:"node_id"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Excerpt     string            `json:"excerpt,omitempty"`
	Affordances []string          `json:"affordances,omitempty"`
	Next        map[string]string `json:"next,omitempty"` // affordance/node_id -> next node_id
}

// Twin implements router.ToolProvider for the "browser." prefix.
type Twin struct {
	nodes   map[string]*Node
	current string
	history []string
}

// New constructs a Browser twin from a scenario-provided node graph, starting
// at startNodeID.
func New(nodes []Node, startNodeID string) *Twin {
	t := &Twin{nodes: make(map[string]*Node), current: startNodeID}
	for i := range nodes {
		n := nodes[i]
		t.nodes[n.NodeID] = &n
	}
	return t
}

func (t *Twin) payload(n *Node) map[string]any {
	return map[string]any{
		"node_id": n.NodeID, "url": n.URL, "title": n.Title,
		"excerpt": n.Excerpt, "affordances": n.Affordances,
	}
}

// Read returns the current node.
func (t *Twin) Read() (map[string]any, error) {
	n, ok := t.nodes[t.current]
	if !ok {
		return nil, router.Errorf("unknown_node", "current node %s does not exist", t.current)
	}
	return t.payload(n), nil
}

// Click navigates via the current node's next map, keyed by affordance or node id.
func (t *Twin) Click(target string) (map[string]any, error) {
	n, ok := t.nodes[t.current]
	if !ok {
		return nil, router.Errorf("unknown_node", "current node %s does not exist", t.current)
	}
	nextID, ok := n.Next[target]
	if !ok {
		return nil, router.Errorf("invalid_affordance", "no affordance %q from node %s", target, t.current)
	}
	if _, ok := t.nodes[nextID]; !ok {
		return nil, router.Errorf("unknown_node", "affordance %q targets missing node %s", target, nextID)
	}
	t.history = append(t.history, t.current)
	if len(t.history) > MaxHistory {
		t.history = t.history[len(t.history)-MaxHistory:]
	}
	t.current = nextID
	return t.Read()
}

// Back pops the bounded history stack.
func (t *Twin) Back() (map[string]any, error) {
	if len(t.history) == 0 {
		return nil, router.NewError("no_history", "no page to go back to")
	}
	t.current = t.history[len(t.history)-1]
	t.history = t.history[:len(t.history)-1]
	return t.Read()
}

// Find scores every node's title/excerpt against query and returns the topK matches.
func (t *Twin) Find(query string, topK int) []map[string]any {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}
	type hit struct {
		n     *Node
		score int
	}
	var hits []hit
	for _, n := range t.nodes {
		score := strings.Count(strings.ToLower(n.Title), needle)*2 + strings.Count(strings.ToLower(n.Excerpt), needle)
		if score > 0 {
			hits = append(hits, hit{n, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].n.NodeID < hits[j].n.NodeID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, map[string]any{"node_id": h.n.NodeID, "title": h.n.Title, "score": h.score})
	}
	return out
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "browser.read", Description: "Read the current page.", DefaultLatencyMs: 90, LatencyJitterMs: 30},
		{Name: "browser.click", Description: "Navigate via an affordance.", DefaultLatencyMs: 150, LatencyJitterMs: 50},
		{Name: "browser.back", Description: "Go back to the previous page.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "browser.find", Description: "Search the current graph for matching pages.", DefaultLatencyMs: 130, LatencyJitterMs: 40},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"browser."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	return map[string]any{
		"node_count": len(t.nodes),
		"current":    t.current,
		"history":    t.history,
	}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "browser.read":
		return t.Read()
	case "browser.click":
		target, _ := args["node_id"].(string)
		if target == "" {
			target, _ = args["affordance"].(string)
		}
		return t.Click(target)
	case "browser.back":
		return t.Back()
	case "browser.find":
		query, _ := args["query"].(string)
		topK := 5
		if v, ok := router.ArgInt(args["top_k"]); ok {
			topK = v
		}
		return map[string]any{"results": t.Find(query, topK)}, nil
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
