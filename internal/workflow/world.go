package workflow

import (
	"encoding/json"

	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/connectors"
	"github.com/haasonsaas/vei/internal/router"
	"github.com/haasonsaas/vei/internal/twins/browser"
	"github.com/haasonsaas/vei/internal/twins/calendar"
	"github.com/haasonsaas/vei/internal/twins/crm"
	"github.com/haasonsaas/vei/internal/twins/db"
	"github.com/haasonsaas/vei/internal/twins/docs"
	"github.com/haasonsaas/vei/internal/twins/erp"
	"github.com/haasonsaas/vei/internal/twins/identity"
	"github.com/haasonsaas/vei/internal/twins/mail"
	"github.com/haasonsaas/vei/internal/twins/servicedesk"
	"github.com/haasonsaas/vei/internal/twins/slack"
	"github.com/haasonsaas/vei/internal/twins/tickets"
)

// World is the resolved scenario (spec.md §6's inline Scenario JSON): the
// seed data every twin is constructed from before a workflow's steps run.
type World struct {
	Meta                map[string]any   `json:"meta,omitempty"`
	Vendors             []string         `json:"vendors,omitempty"`
	BrowserNodes        []browser.Node   `json:"browser_nodes,omitempty"`
	BrowserStartNodeID  string           `json:"browser_start_node_id,omitempty"`
	Documents           []docs.Seed      `json:"documents,omitempty"`
	CalendarEvents      []calendar.Seed  `json:"calendar_events,omitempty"`
	DatabaseTables      []db.Seed        `json:"database_tables,omitempty"`
	MailTarget          string           `json:"mail_target,omitempty"`
	MailOwnerAddress    string           `json:"mail_owner_address,omitempty"`
	MailReplyRules      []mail.ReplyRule `json:"mail_reply_rules,omitempty"`
	SlackInitialMessage string           `json:"slack_initial_message,omitempty"`
	CRMErrorRate        float64          `json:"crm_error_rate,omitempty"`
	ERPErrorRate        float64          `json:"erp_error_rate,omitempty"`
	Metadata            map[string]any   `json:"metadata,omitempty"`
}

// CatalogLookup resolves a named scenario from a corpus-maintained catalog.
// internal/corpus supplies the concrete implementation; workflow only
// depends on the function type to avoid an import cycle.
type CatalogLookup func(name string) (*World, bool)

// ResolveWorld turns a workflow's world block into a World, mirroring
// compile_workflow_spec's _compile_world: a {catalog: name} reference, an
// inline scene spec (decoded directly), or an empty default.
func ResolveWorld(world map[string]any, catalog CatalogLookup) (*World, error) {
	if len(world) == 0 {
		return &World{}, nil
	}
	if name, ok := world["catalog"].(string); ok {
		if catalog == nil {
			return nil, router.Errorf("world.catalog_unavailable", "no catalog lookup configured for %q", name)
		}
		resolved, found := catalog(name)
		if !found {
			return nil, router.Errorf("world.catalog_unknown", "unknown catalog scenario %q", name)
		}
		return resolved, nil
	}

	raw, err := json.Marshal(world)
	if err != nil {
		return nil, router.Errorf("invalid_args", "cannot encode world block: %v", err)
	}
	var w World
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, router.Errorf("invalid_args", "cannot decode world block: %v", err)
	}
	return &w, nil
}

// Session bundles the constructed bus/registry/router plus a handle to the
// DB twin (it owns a *sql.DB that must be closed).
type Session struct {
	Bus    *bus.Bus
	Router *router.Router
	DB     *db.Twin
}

// Close releases resources the session owns (currently the DB twin's sqlite handle).
func (s *Session) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// BuildSession constructs every twin from w, registers them on a fresh
// Router, and wires a sim-mode connector runtime over all eleven services
// (spec.md §2's "Construct Router with the compiled scenario"). Extra
// router.Options (trace recorder, metrics observer) are passed straight
// through to router.New so a caller can attach tracing/metrics without
// reaching into the session afterward.
func BuildSession(w *World, seed int64, opts ...router.Option) (*Session, error) {
	b := bus.New()
	reg := router.NewRegistry()

	browserNodes := w.BrowserNodes
	browserStart := w.BrowserStartNodeID
	if len(browserNodes) == 0 {
		browserNodes = []browser.Node{{NodeID: "home", URL: "https://intranet.example/", Title: "Home", Affordances: []string{}, Next: map[string]string{}}}
		browserStart = "home"
	}
	browserTwin := browser.New(browserNodes, browserStart)

	mailTarget := w.MailTarget
	if mailTarget == "" {
		mailTarget = "mail.inbox"
	}
	mailTwin := mail.New(b, mailTarget, w.MailOwnerAddress, w.MailReplyRules)

	slackTwin := slack.New(b)
	docsTwin := docs.New(b, w.Documents)
	ticketsTwin := tickets.New(b)
	calendarTwin := calendar.New(b, w.CalendarEvents)
	crmTwin := crm.New(b, seed, w.CRMErrorRate)
	erpTwin := erp.New(b, seed, w.ERPErrorRate)
	identityTwin := identity.New(b)
	servicedeskTwin := servicedesk.New(b)

	dbSeeds := w.DatabaseTables
	if len(dbSeeds) == 0 {
		dbSeeds = db.DefaultSeeds()
	}
	dbTwin, err := db.New("", dbSeeds)
	if err != nil {
		return nil, err
	}

	providers := []router.ToolProvider{browserTwin, mailTwin, slackTwin, docsTwin, ticketsTwin, calendarTwin, crmTwin, erpTwin, identityTwin, servicedeskTwin, dbTwin}
	for _, p := range providers {
		if err := reg.RegisterProvider(p); err != nil {
			dbTwin.Close()
			return nil, err
		}
	}

	if w.SlackInitialMessage != "" {
		slackTwin.Post("#general", "system", w.SlackInitialMessage, "")
	}

	simAdapters := map[connectors.ServiceName]connectors.Provider{
		connectors.ServiceBrowser:     browserTwin,
		connectors.ServiceMail:        mailTwin,
		connectors.ServiceSlack:       slackTwin,
		connectors.ServiceDocs:        docsTwin,
		connectors.ServiceTickets:     ticketsTwin,
		connectors.ServiceCalendar:    calendarTwin,
		connectors.ServiceCRM:         crmTwin,
		connectors.ServiceERP:         erpTwin,
		connectors.ServiceOkta:        identityTwin,
		connectors.ServiceServiceDesk: servicedeskTwin,
		connectors.ServiceDB:          dbTwin,
	}
	runtime := connectors.NewRuntime(connectors.ModeSim, connectors.PolicyGateFromEnv(), simAdapters)

	routerOpts := append([]router.Option{router.WithConnectorRuntime(runtime)}, opts...)
	r := router.New(seed, b, reg, routerOpts...)
	if tr := r.TraceRecorder(); tr != nil {
		if er, ok := tr.(bus.EventRecorder); ok {
			b.SetEventRecorder(er)
		}
	}
	return &Session{Bus: b, Router: r, DB: dbTwin}, nil
}
