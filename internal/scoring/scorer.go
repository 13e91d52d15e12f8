package scoring

import (
	"strings"

	"github.com/haasonsaas/vei/internal/tracelog"
)

// ComputeScore replays a trace's call records and derives the subgoal,
// policy, and success verdict described in spec.md §4.7, ported from
// compute_score in original_source/vei/score_core.py. The trace also
// carries type:"event" records for bus-delivered events (spec.md §6);
// ComputeScore skips those and scores call records only, since every
// subgoal here is about an effect of a tool call the agent made, not a
// scheduled delivery — the Python original's separately-logged bus-event
// scan is folded into the outbound call payloads instead (slack.post's
// posted text, mail.list/mail.open's returned bodies).
func ComputeScore(records []tracelog.CallRecord, mode Mode) Result {
	if mode != ModeEmail && mode != ModeFull {
		mode = ModeEmail
	}

	var (
		maxTimeMs        int64
		toolCounts       = map[string]int{}
		findings         []PolicyFinding
		docLogged        bool
		ticketUpdated    bool
		crmLogged        bool
		approvalWithAmt  bool
		emailParsed      bool
		approvalSeen     bool
		vendorReplyAtMs  *int64
		crmLogAtMs       *int64
	)

	addPolicy := func(code, message, severity, tool string, timeMs int64, metadata map[string]any) {
		findings = append(findings, PolicyFinding{
			Code: code, Message: message, Severity: severity, Tool: tool, TimeMs: timeMs, Metadata: metadata,
		})
	}

	for _, rec := range records {
		if rec.Type == tracelog.RecordTypeEvent {
			continue
		}
		if rec.TimeMs > maxTimeMs {
			maxTimeMs = rec.TimeMs
		}
		toolCounts[rec.Tool]++
		count := toolCounts[rec.Tool]

		switch rec.Tool {
		case "slack.post":
			if count == 5 || count == 10 {
				addPolicy("usage.repetition", "tool called repeatedly: "+rec.Tool, "info", rec.Tool, rec.TimeMs, nil)
			}
			text, _ := rec.Args["text"].(string)
			if text == "" {
				text, _ = rec.Response["text"].(string)
			}
			if approvalMarker(text) {
				approvalSeen = true
			}
			if approvalSignal(text) {
				if hasAmount(text) {
					approvalWithAmt = true
				} else {
					addPolicy("slack.approval_missing_amount", "approval message lacks a dollar amount", "warning", rec.Tool, rec.TimeMs, nil)
				}
			}

		case "mail.compose":
			if count == 3 || count == 5 {
				addPolicy("mail.outbound_volume", "high outbound mail volume", "info", rec.Tool, rec.TimeMs, nil)
			}

		case "docs.create", "docs.update":
			docLogged = true
			title, _ := rec.Args["title"].(string)
			body, _ := rec.Args["body"].(string)
			combined := title + " " + body
			lowered := strings.ToLower(combined)
			if !hasAmount(combined) && !strings.Contains(lowered, "quote") && !strings.Contains(lowered, "macrobook") {
				addPolicy("docs.missing_quote_details", "logged document lacks quote details", "warning", rec.Tool, rec.TimeMs, nil)
			}

		case "tickets.update", "tickets.transition":
			ticketUpdated = true
			ticketID, _ := rec.Args["ticket_id"].(string)
			if ticketID == "" {
				addPolicy("tickets.missing_id", "ticket update is missing ticket_id", "error", rec.Tool, rec.TimeMs, nil)
			}
			if rec.Tool == "tickets.update" {
				_, hasDescription := rec.Args["description"]
				_, hasAssignee := rec.Args["assignee"]
				if !hasDescription && !hasAssignee {
					addPolicy("tickets.empty_update", "ticket update has no description or assignee", "warning", rec.Tool, rec.TimeMs, nil)
				}
			}

		case "crm.log_activity":
			crmLogged = true
			t := rec.TimeMs
			crmLogAtMs = &t
			note, _ := rec.Args["note"].(string)
			switch {
			case note == "":
				addPolicy("crm.note_missing_body", "logged CRM activity has an empty note", "error", rec.Tool, rec.TimeMs, nil)
			default:
				if !hasAmount(note) {
					addPolicy("crm.note_missing_amount", "CRM note lacks a dollar amount", "warning", rec.Tool, rec.TimeMs, nil)
				}
				if !hasETA(note) {
					addPolicy("crm.note_missing_eta", "CRM note lacks a delivery estimate", "warning", rec.Tool, rec.TimeMs, nil)
				}
			}

		case "crm.create_contact", "crm.create_company":
			if len(rec.Args) == 0 {
				addPolicy("crm.payload_missing", "CRM record created with an empty payload", "warning", rec.Tool, rec.TimeMs, nil)
			}

		case "mail.open", "mail.list":
			for _, text := range extractTexts(rec.Response) {
				if mailQuoteSignal(text) {
					emailParsed = true
					if vendorReplyAtMs == nil {
						t := rec.TimeMs
						vendorReplyAtMs = &t
					}
					break
				}
			}
		}
	}

	subgoals := Subgoals{
		Citations:          toolCounts["browser.read"] > 0,
		Approval:           approvalSeen,
		ApprovalWithAmount: approvalWithAmt,
		EmailSent:          toolCounts["mail.compose"] > 0,
		EmailParsed:        emailParsed,
		DocLogged:          docLogged,
		TicketUpdated:      ticketUpdated,
		CRMLogged:          crmLogged,
	}

	if !docLogged {
		addPolicy("docs.quote_missing", "no quote document was logged during the run", "warning", "", maxTimeMs, nil)
	}
	if !ticketUpdated {
		addPolicy("tickets.update_missing", "no ticket was updated during the run", "warning", "", maxTimeMs, nil)
	}
	if vendorReplyAtMs != nil {
		if crmLogAtMs == nil {
			addPolicy("crm.note_absent", "vendor reply was parsed but never logged to CRM", "error", "", maxTimeMs, nil)
		} else {
			latency := *crmLogAtMs - *vendorReplyAtMs
			if latency > 60000 {
				addPolicy("sla.crm_followup_latency", "CRM follow-up logged more than 60s after the vendor reply", "warning", "", maxTimeMs,
					map[string]any{"latency_ms": latency})
			}
		}
	}

	warningCount, errorCount := 0, 0
	for _, f := range findings {
		switch f.Severity {
		case "warning":
			warningCount++
		case "error":
			errorCount++
		}
	}

	var success bool
	if mode == ModeFull {
		success = subgoals.AllTrue()
	} else {
		success = subgoals.EmailParsed
	}

	return Result{
		Success:  success,
		Subgoals: subgoals,
		Costs:    Costs{Actions: len(records), TimeMs: maxTimeMs},
		ProvenanceOK: true,
		Policy: PolicySummary{
			Findings:     findings,
			WarningCount: warningCount,
			ErrorCount:   errorCount,
		},
		Usage:            toolCounts,
		SuccessEmailOnly: subgoals.EmailParsed,
		SuccessFullFlow:  subgoals.AllTrue(),
	}
}
