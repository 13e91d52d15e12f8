// Package mail implements the Mail twin (spec.md §4.3.2): INBOX/OUTBOX
// folders where composing a message to a scenario-recognized address
// schedules a vendor reply on the bus.
package mail

import (
	"fmt"
	"sort"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// Folder is the message's mailbox location.
type Folder string

const (
	FolderInbox  Folder = "INBOX"
	FolderOutbox Folder = "OUTBOX"
)

// Message is the twin's entity record.
type Message struct {
	MessageID string
	From      string
	To        string
	Subject   string
	BodyText  string
	Headers   map[string]string
	TimeMs    int64
	Folder    Folder
}

// ReplyRule describes a scenario-configured vendor auto-reply keyed by
// recipient address.
type ReplyRule struct {
	Address    string `json:"address"`
	ReplyAtMs  int64  `json:"reply_at_ms"`
	From       string `json:"from"`
	SubjPrefix string `json:"subject_prefix,omitempty"`
	BodyText   string `json:"body_text"`
}

// Twin implements bus.Receiver and router.ToolProvider for the "mail." prefix.
type Twin struct {
	bus     *bus.Bus
	target  string // this router instance's own mailbox address
	replies map[string]ReplyRule
	messages map[string]*Message
	seq     int
}

// New constructs a Mail twin for the inbox owner address, registering itself
// on the bus under target so scheduled replies can be delivered back to it.
func New(b *bus.Bus, target, ownerAddress string, replies []ReplyRule) *Twin {
	t := &Twin{bus: b, target: target, replies: make(map[string]ReplyRule), messages: make(map[string]*Message), seq: 1}
	for _, r := range replies {
		t.replies[r.Address] = r
	}
	b.Register(target, t)
	_ = ownerAddress
	return t
}

func (t *Twin) payload(m *Message) map[string]any {
	headers := map[string]any{}
	for k, v := range m.Headers {
		headers[k] = v
	}
	return map[string]any{
		"id": m.MessageID, "from": m.From, "to": m.To, "subj": m.Subject,
		"body_text": m.BodyText, "headers": headers, "time_ms": m.TimeMs, "folder": string(m.Folder),
	}
}

// Compose creates an outbound message and, if the recipient matches a
// scenario reply rule, schedules the vendor's reply reply_at_ms ahead.
func (t *Twin) Compose(from, to, subject, body string) (map[string]any, error) {
	id := fmt.Sprintf("m%d", t.seq)
	t.seq++
	now := t.bus.ClockMs()
	m := &Message{MessageID: id, From: from, To: to, Subject: subject, BodyText: body, TimeMs: now, Folder: FolderOutbox}
	t.messages[id] = m

	if rule, ok := t.replies[to]; ok {
		t.bus.Schedule(rule.ReplyAtMs, t.target, map[string]any{
			"op": "deliver_reply", "in_reply_to": id, "from": rule.From, "to": from,
			"subject": rule.SubjPrefix + subject, "body_text": rule.BodyText,
		})
	}
	return map[string]any{"id": id}, nil
}

// Open returns a message's full body.
func (t *Twin) Open(id string) (map[string]any, error) {
	m, ok := t.messages[id]
	if !ok {
		return nil, router.Errorf("unknown_message", "unknown message: %s", id)
	}
	return t.payload(m), nil
}

// List returns messages in folder (or every message if folder is empty),
// paginated unless legacy is set.
func (t *Twin) List(args router.ListArgs, folder string) (map[string]any, error) {
	ids := make([]string, 0, len(t.messages))
	for id := range t.messages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		m := t.messages[id]
		if folder != "" && string(m.Folder) != folder {
			continue
		}
		rows = append(rows, t.payload(m))
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "time_ms"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"messages": rows}, nil
	}
	page, err := router.PageRows(rows, "messages", args.Limit, args.Cursor, "mail.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// Reply composes a message in reply to an existing one, preserving the
// original subject with a "Re:" prefix when not already present.
func (t *Twin) Reply(inReplyTo, from, body string) (map[string]any, error) {
	orig, ok := t.messages[inReplyTo]
	if !ok {
		return nil, router.Errorf("unknown_message", "unknown message: %s", inReplyTo)
	}
	subject := orig.Subject
	if len(subject) < 3 || subject[:3] != "Re:" {
		subject = "Re: " + subject
	}
	return t.Compose(from, orig.From, subject, body)
}

// Deliver applies a scheduled mail event (a vendor reply landing in INBOX).
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	if op != "deliver_reply" {
		return nil, router.Errorf("invalid_args", "unrecognized mail delivery op: %s", op)
	}
	from, _ := payload["from"].(string)
	to, _ := payload["to"].(string)
	subject, _ := payload["subject"].(string)
	body, _ := payload["body_text"].(string)
	id := fmt.Sprintf("m%d", t.seq)
	t.seq++
	m := &Message{MessageID: id, From: from, To: to, Subject: subject, BodyText: body, TimeMs: t.bus.ClockMs(), Folder: FolderInbox}
	t.messages[id] = m
	return map[string]any{"id": id}, nil
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "mail.list", Description: "List mail messages.", DefaultLatencyMs: 110, LatencyJitterMs: 30},
		{Name: "mail.open", Description: "Read a message's full body.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "mail.compose", Description: "Compose an outbound message.", SideEffects: []string{"mail_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("to", "subj")},
		{Name: "mail.reply", Description: "Reply to a message.", SideEffects: []string{"mail_mutation"}, DefaultLatencyMs: 170, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("id")},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"mail."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	messages := make(map[string]any, len(t.messages))
	for id, m := range t.messages {
		messages[id] = map[string]any{"folder": string(m.Folder), "subject": m.Subject}
	}
	return map[string]any{"messages": messages}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "mail.list":
		folder, _ := args["folder"].(string)
		return t.List(router.ListArgsFromMap(args), folder)
	case "mail.open":
		id, _ := args["id"].(string)
		return t.Open(id)
	case "mail.compose":
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		subj, _ := args["subj"].(string)
		body, _ := args["body_text"].(string)
		return t.Compose(from, to, subj, body)
	case "mail.reply":
		inReplyTo, _ := args["id"].(string)
		from, _ := args["from"].(string)
		body, _ := args["body_text"].(string)
		return t.Reply(inReplyTo, from, body)
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
