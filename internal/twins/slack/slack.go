// Package slack implements the Slack twin (spec.md §4.3.3): channels with a
// monotonically increasing per-channel stringified ts, threads, and reactions.
package slack

import (
	"fmt"
	"sort"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// Message is the twin's entity record.
type Message struct {
	Channel   string
	TS        string
	User      string
	Text      string
	ThreadTS  string
	Reactions []string
	TimeMs    int64
}

// Twin implements bus.Receiver and router.ToolProvider for the "slack." prefix.
type Twin struct {
	bus        *bus.Bus
	messages   map[string][]*Message // channel -> ordered messages
	channelSeq map[string]int64
}

// New constructs a Slack twin.
func New(b *bus.Bus) *Twin {
	return &Twin{bus: b, messages: make(map[string][]*Message), channelSeq: make(map[string]int64)}
}

func (t *Twin) nextTS(channel string) string {
	t.channelSeq[channel]++
	return fmt.Sprintf("%d", t.channelSeq[channel])
}

func (t *Twin) payload(m *Message) map[string]any {
	reactions := append([]string(nil), m.Reactions...)
	out := map[string]any{
		"channel": m.Channel, "ts": m.TS, "user": m.User, "text": m.Text, "reactions": reactions,
	}
	if m.ThreadTS != "" {
		out["thread_ts"] = m.ThreadTS
	}
	return out
}

// Post appends a message to channel, optionally inside a thread.
func (t *Twin) Post(channel, user, text, threadTS string) (map[string]any, error) {
	ts := t.nextTS(channel)
	m := &Message{Channel: channel, TS: ts, User: user, Text: text, ThreadTS: threadTS, TimeMs: t.bus.ClockMs()}
	t.messages[channel] = append(t.messages[channel], m)
	return t.payload(m), nil
}

// React appends a reaction to the given message.
func (t *Twin) React(channel, ts, reaction string) (map[string]any, error) {
	for _, m := range t.messages[channel] {
		if m.TS == ts {
			m.Reactions = append(m.Reactions, reaction)
			return t.payload(m), nil
		}
	}
	return nil, router.Errorf("unknown_message", "unknown message %s in channel %s", ts, channel)
}

// History returns messages in a channel, optionally scoped to a thread, paginated unless legacy.
func (t *Twin) History(args router.ListArgs, channel, threadTS string) (map[string]any, error) {
	all := t.messages[channel]
	rows := make([]map[string]any, 0, len(all))
	for _, m := range all {
		if threadTS != "" && m.ThreadTS != threadTS {
			continue
		}
		rows = append(rows, t.payload(m))
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "ts"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"messages": rows}, nil
	}
	page, err := router.PageRows(rows, "messages", args.Limit, args.Cursor, "slack.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// ListChannels returns every channel known to the twin with its message count.
func (t *Twin) ListChannels() map[string]any {
	names := make([]string, 0, len(t.messages))
	for name := range t.messages {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]map[string]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, map[string]any{"channel": name, "message_count": len(t.messages[name])})
	}
	return map[string]any{"channels": rows}
}

// Deliver applies a scheduled Slack event: a post or a reaction.
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	channel, _ := payload["channel"].(string)
	switch op {
	case "react":
		ts, _ := payload["ts"].(string)
		reaction, _ := payload["reaction"].(string)
		return t.React(channel, ts, reaction)
	default:
		user, _ := payload["user"].(string)
		text, _ := payload["text"].(string)
		threadTS, _ := payload["thread_ts"].(string)
		if channel == "" || text == "" {
			return nil, router.NewError("invalid_args", "slack delivery requires channel and text")
		}
		return t.Post(channel, user, text, threadTS)
	}
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "slack.list_channels", Description: "List channels.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "slack.post", Description: "Post a message to a channel.", SideEffects: []string{"slack_mutation"}, DefaultLatencyMs: 140, LatencyJitterMs: 40, InputSchema: router.RequiredSchema("channel", "text")},
		{Name: "slack.react", Description: "React to a message.", SideEffects: []string{"slack_mutation"}, DefaultLatencyMs: 110, LatencyJitterMs: 30, InputSchema: router.RequiredSchema("channel", "ts", "reaction")},
		{Name: "slack.history", Description: "Fetch a channel's message history.", DefaultLatencyMs: 120, LatencyJitterMs: 40},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"slack."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	channels := make(map[string]any, len(t.messages))
	for channel, msgs := range t.messages {
		channels[channel] = len(msgs)
	}
	return map[string]any{"message_counts": channels}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "slack.list_channels":
		return t.ListChannels(), nil
	case "slack.post":
		channel, _ := args["channel"].(string)
		user, _ := args["user"].(string)
		text, _ := args["text"].(string)
		threadTS, _ := args["thread_ts"].(string)
		return t.Post(channel, user, text, threadTS)
	case "slack.react":
		channel, _ := args["channel"].(string)
		ts, _ := args["ts"].(string)
		reaction, _ := args["reaction"].(string)
		return t.React(channel, ts, reaction)
	case "slack.history":
		channel, _ := args["channel"].(string)
		threadTS, _ := args["thread_ts"].(string)
		return t.History(router.ListArgsFromMap(args), channel, threadTS)
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
