package corpus

import (
	"fmt"

	"github.com/haasonsaas/vei/internal/workflow"
)

func objectiveForFamily(family string) string {
	switch family {
	case "db_audit":
		return "Validate procurement records in DB and route finance approval artifacts."
	case "sales_pipeline":
		return "Open a sales pipeline artifact tied to procurement execution evidence."
	case "calendar_review":
		return "Schedule review operations and sync approvals across calendar/mail/db."
	case "risk_escalation":
		return "Escalate procurement risk with CRM logging and cross-channel notifications."
	case "identity_access_review":
		return "Process an enterprise access request through identity and service-desk controls."
	case "procure_to_pay":
		return "Execute procure-to-pay lifecycle with ERP and approval audit updates."
	default:
		return "Collect vendor evidence, email quote request, and route approval execution."
	}
}

func successForFamily(family string) []string {
	switch family {
	case "db_audit":
		return []string{"Approval audit table inspected", "Finance escalation email sent", "Approval audit row upserted"}
	case "sales_pipeline":
		return []string{"CRM pipeline opportunity created", "Quote summary captured in docs", "Approval context announced in Slack"}
	case "calendar_review":
		return []string{"Review meeting scheduled", "Procurement order status updated", "Action ticket opened"}
	case "risk_escalation":
		return []string{"Risk signal captured in CRM activity", "Escalation email sent", "Escalation posted in Slack"}
	case "identity_access_review":
		return []string{"Pending request reviewed in ServiceDesk", "Identity group assignment updated in Okta", "Approval status posted in Slack"}
	case "procure_to_pay":
		return []string{"Purchase order created in ERP", "Invoice matched and payment posted", "Audit log row persisted in database"}
	default:
		return []string{"Vendor quote requested via mail", "Approval request posted in Slack with budget", "Execution ticket created"}
	}
}

func failurePathsForFamily(family string) []workflow.FailurePathSpec {
	switch family {
	case "db_audit":
		return []workflow.FailurePathSpec{{
			Name: "audit_write_retry", TriggerStep: "write_audit", RecoverySteps: []string{"post_approval"},
			Notes: "If DB write fails, keep approval thread updated.",
		}}
	case "sales_pipeline":
		return []workflow.FailurePathSpec{{
			Name: "crm_activity_retry", TriggerStep: "log_activity", RecoverySteps: []string{"post_approval"},
			Notes: "If CRM logging fails, continue with approval channel artifacts.",
		}}
	case "calendar_review":
		return []workflow.FailurePathSpec{{
			Name: "calendar_recover", TriggerStep: "schedule_review", RecoverySteps: []string{"mail_review_context", "announce_channel"},
			Notes: "If event creation fails, preserve approval context over mail/slack.",
		}}
	case "risk_escalation":
		return []workflow.FailurePathSpec{{
			Name: "escalation_continue", TriggerStep: "log_crm_risk", RecoverySteps: []string{"mail_escalation", "post_approval"},
			Notes: "Escalate even if CRM activity logging is unavailable.",
		}}
	case "identity_access_review":
		return []workflow.FailurePathSpec{{
			Name: "identity_assign_retry", TriggerStep: "assign_group", RecoverySteps: []string{"approve_request", "announce_access"},
			Notes: "If identity assignment fails, continue request progression with explicit comment.",
		}}
	case "procure_to_pay":
		return []workflow.FailurePathSpec{{
			Name: "three_way_mismatch_recovery", TriggerStep: "match_three_way", RecoverySteps: []string{"write_audit"},
			Notes: "Persist mismatch details to audit table for AP investigation.",
		}}
	default:
		return []workflow.FailurePathSpec{{
			Name: "ticket_recover", TriggerStep: "create_ticket", RecoverySteps: []string{"post_approval"},
			Notes: "Proceed if ticket service is unavailable.",
		}}
	}
}

func contains(field, substr string) []workflow.AssertionSpec {
	return []workflow.AssertionSpec{{Kind: workflow.AssertResultContains, Field: field, Contains: substr}}
}

func stepsForFamily(family, scenarioID, orgName, quoteTo, approver string, budget int, poID, crmDealCreateTool, crmActivityTool string) []workflow.StepSpec {
	switch family {
	case "db_audit":
		return []workflow.StepSpec{
			{
				StepID: "query_audit", Description: "Read approval audit rows from the DB.",
				Tool: "db.query", Args: map[string]any{"table": "approval_audit", "limit": 10},
				Expect: contains("table", "approval_audit"),
			},
			{
				StepID: "escalate_finance", Description: "Email finance for approval confirmation.",
				Tool: "mail.compose", Args: map[string]any{
					"to": approver, "subj": scenarioID + " approval confirmation",
					"body_text": fmt.Sprintf("Please confirm approval for %s budget $%d.", scenarioID, budget),
				},
				Expect: contains("id", "m"),
			},
			{
				StepID: "post_approval", Description: "Post approval request in procurement Slack channel.",
				Tool: "slack.post", Args: map[string]any{
					"channel": "#procurement",
					"text":    fmt.Sprintf("Approval needed for %s. Budget $%d. DB audit row checked.", scenarioID, budget),
				},
				Expect: contains("ts", ""),
			},
			{
				StepID: "write_audit", Description: "Write approval workflow state into audit DB.",
				Tool: "db.upsert", Args: map[string]any{
					"table": "approval_audit",
					"row": map[string]any{
						"id": "APR-" + scenarioID, "entity_type": "purchase_order", "entity_id": poID,
						"status": "REQUESTED", "approver": approver,
					},
				},
				Expect: contains("id", "APR-"),
			},
			{
				StepID: "create_ticket", Description: "Open ticket for approval follow-up.",
				Tool: "tickets.create", Args: map[string]any{
					"title": scenarioID + " approval follow-up", "description": "Track finance approval progress and audit linkage.",
					"assignee": "agent",
				},
				Expect: contains("ticket_id", "TCK-"),
			},
		}

	case "sales_pipeline":
		return []workflow.StepSpec{
			{
				StepID: "create_opportunity", Description: "Create pipeline opportunity for this procurement plan.",
				Tool: crmDealCreateTool, Args: map[string]any{"name": orgName + " " + scenarioID + " renewal", "amount": budget, "stage": "Qualification"},
				Expect: contains("id", "D-"),
			},
			{
				StepID: "capture_quote_doc", Description: "Write quote summary into docs for reviewer context.",
				Tool: "docs.create", Args: map[string]any{
					"title": scenarioID + " quote summary",
					"body":  fmt.Sprintf("Scenario %s: budget $%d, approver %s.", scenarioID, budget, approver),
					"tags":  []string{"quote", "approval", "generated"},
				},
				Expect: contains("doc_id", "DOC-"),
			},
			{
				StepID: "request_vendor_quote", Description: "Send quote request to vendor contact.",
				Tool: "mail.compose", Args: map[string]any{
					"to": quoteTo, "subj": orgName + " quote request (" + scenarioID + ")",
					"body_text": "Please confirm total amount, ETA, and contract validity window.",
				},
				Expect: contains("id", "m"),
			},
			{
				StepID: "post_approval", Description: "Post finance approval context in Slack.",
				Tool: "slack.post", Args: map[string]any{
					"channel": "#procurement",
					"text":    fmt.Sprintf("Approval request %s: budget $%d, CRM opportunity opened, docs summary captured.", scenarioID, budget),
				},
				Expect: contains("ts", ""),
			},
			{
				StepID: "log_activity", Description: "Log final approval context in CRM activity stream.",
				Tool: crmActivityTool, Args: map[string]any{
					"kind": "note", "note": fmt.Sprintf("Scenario %s submitted for finance approval at budget $%d.", scenarioID, budget),
				},
				Expect: contains("ok", "true"),
			},
		}

	case "calendar_review":
		return []workflow.StepSpec{
			{
				StepID: "schedule_review", Description: "Schedule a finance review call.",
				Tool: "calendar.create_event", Args: map[string]any{
					"title": scenarioID + " finance approval review", "start_ms": 3_600_000, "end_ms": 4_200_000,
					"attendees": []string{approver}, "location": "Virtual",
				},
				Expect: contains("event_id", "EVT-"),
			},
			{
				StepID: "mail_review_context", Description: "Email review context and expected decision.",
				Tool: "mail.compose", Args: map[string]any{
					"to": approver, "subj": scenarioID + " review agenda",
					"body_text": fmt.Sprintf("Agenda: approve procurement plan %s for $%d.", scenarioID, budget),
				},
				Expect: contains("id", "m"),
			},
			{
				StepID: "mark_order", Description: "Update procurement order state in DB.",
				Tool: "db.upsert", Args: map[string]any{
					"table": "procurement_orders",
					"row": map[string]any{
						"id": poID, "vendor": orgName, "amount_usd": budget,
						"status": "REVIEW_SCHEDULED", "cost_center": "FIN-OPS",
					},
				},
				Expect: contains("id", "PO-"),
			},
			{
				StepID: "announce_channel", Description: "Post approval workflow status to Slack.",
				Tool: "slack.post", Args: map[string]any{
					"channel": "#procurement",
					"text":    fmt.Sprintf("Scheduled finance review for %s. Order %s marked REVIEW_SCHEDULED.", scenarioID, poID),
				},
				Expect: contains("ts", ""),
			},
			{
				StepID: "create_ticket", Description: "Create an execution ticket for operational follow-up.",
				Tool: "tickets.create", Args: map[string]any{
					"title": scenarioID + " operations follow-up", "description": "Coordinate finance review outcome and next actions.",
					"assignee": "agent",
				},
				Expect: contains("ticket_id", "TCK-"),
			},
		}

	case "risk_escalation":
		return []workflow.StepSpec{
			{StepID: "inspect_catalog", Description: "Review procurement browser context for anomalies.", Tool: "browser.read", Args: map[string]any{}, Expect: contains("title", "")},
			{
				StepID: "query_orders", Description: "Read current procurement order states from DB.",
				Tool: "db.query", Args: map[string]any{"table": "procurement_orders", "limit": 10},
				Expect: contains("table", "procurement_orders"),
			},
			{
				StepID: "log_crm_risk", Description: "Record risk context in CRM activity log.",
				Tool: crmActivityTool, Args: map[string]any{
					"kind": "note", "note": fmt.Sprintf("Potential delivery risk for %s; escalate pending approval.", scenarioID),
				},
				Expect: contains("ok", "true"),
			},
			{
				StepID: "mail_escalation", Description: "Escalate approval request by email.",
				Tool: "mail.compose", Args: map[string]any{
					"to": approver, "subj": scenarioID + " risk escalation",
					"body_text": "Delivery risk identified. Please approve mitigation budget and timeline.",
				},
				Expect: contains("id", "m"),
			},
			{
				StepID: "post_approval", Description: "Post approval escalation context in Slack.",
				Tool: "slack.post", Args: map[string]any{
					"channel": "#procurement",
					"text":    fmt.Sprintf("Escalation: %s needs finance approval for risk mitigation.", scenarioID),
				},
				Expect: contains("ts", ""),
			},
		}

	case "identity_access_review":
		return []workflow.StepSpec{
			{
				StepID: "list_pending_requests", Description: "Review pending access requests in ServiceDesk.",
				Tool: "servicedesk.list_requests", Args: map[string]any{"status": "PENDING_APPROVAL", "limit": 10},
				Expect: contains("requests", "REQ-"),
			},
			{
				StepID: "inspect_identity", Description: "Inspect user state in Okta before assignment.",
				Tool: "okta.get_user", Args: map[string]any{"user_id": "USR-9001"},
				Expect: contains("email", "example.com"),
			},
			{
				StepID: "assign_group", Description: "Assign user to IT support group for temporary access.",
				Tool: "okta.assign_group", Args: map[string]any{"user_id": "USR-9001", "group_id": "GRP-it"},
				Expect: contains("group_id", "GRP-"),
			},
			{
				StepID: "approve_request", Description: "Update service request approval stage.",
				Tool: "servicedesk.update_approval", Args: map[string]any{
					"request_id": "REQ-8801", "approval_stage": "security", "approval_status": "APPROVED",
				},
				Expect: contains("approval_status", "APPROVED"),
			},
			{
				StepID: "announce_access", Description: "Announce access completion in Slack.",
				Tool: "slack.post", Args: map[string]any{
					"channel": "#procurement",
					"text":    fmt.Sprintf("Access request %s approved; identity assignment applied for review.", scenarioID),
				},
				Expect: contains("ts", ""),
			},
		}

	case "procure_to_pay":
		unitPrice := float64(budget) / 5
		return []workflow.StepSpec{
			{
				StepID: "create_po", Description: "Create ERP purchase order for procurement plan.",
				Tool: "erp.create_po", Args: map[string]any{
					"vendor": "MacroCompute", "currency": "USD",
					"lines": []map[string]any{{"item_id": "LAPTOP-15", "desc": "Laptop fleet refresh", "qty": 5, "unit_price": unitPrice}},
				},
				Expect: contains("id", "PO-"),
			},
			{
				StepID: "receive_goods", Description: "Receive goods against the ERP purchase order.",
				Tool: "erp.receive_goods", Args: map[string]any{"po_id": "PO-1", "lines": []map[string]any{{"item_id": "LAPTOP-15", "qty": 5}}},
				Expect: contains("id", "RCPT-"),
			},
			{
				StepID: "submit_invoice", Description: "Submit invoice for the received order.",
				Tool: "erp.submit_invoice", Args: map[string]any{
					"vendor": "MacroCompute", "po_id": "PO-1",
					"lines": []map[string]any{{"item_id": "LAPTOP-15", "qty": 5, "unit_price": unitPrice}},
				},
				Expect: contains("id", "INV-"),
			},
			{
				StepID: "match_three_way", Description: "Run ERP three-way match.",
				Tool: "erp.match_three_way", Args: map[string]any{"po_id": "PO-1", "invoice_id": "INV-1", "receipt_id": "RCPT-1"},
				Expect: contains("status", "MATCH"),
			},
			{
				StepID: "post_payment", Description: "Post invoice payment after successful match.",
				Tool: "erp.post_payment", Args: map[string]any{"invoice_id": "INV-1", "amount": float64(budget)},
				Expect: contains("status", "PAID"),
			},
			{
				StepID: "write_audit", Description: "Write procure-to-pay completion row to audit DB.",
				Tool: "db.upsert", Args: map[string]any{
					"table": "approval_audit",
					"row": map[string]any{
						"id": "APR-" + scenarioID, "entity_type": "purchase_order", "entity_id": "PO-1",
						"status": "PAID", "approver": approver,
					},
				},
				Expect: contains("id", "APR-"),
			},
		}

	default:
		return []workflow.StepSpec{
			{StepID: "read_browser", Description: "Open procurement catalog context.", Tool: "browser.read", Args: map[string]any{}, Expect: contains("title", "")},
			{StepID: "search_docs", Description: "Search policy docs for procurement guidance.", Tool: "docs.search", Args: map[string]any{"query": "policy"}},
			{
				StepID: "request_quote", Description: "Send quote request email to the assigned vendor contact.",
				Tool: "mail.compose", Args: map[string]any{
					"to": quoteTo, "subj": orgName + " procurement quote request",
					"body_text": fmt.Sprintf("Please share quote and ETA for laptop batch (%s). Include total amount and delivery timeline.", scenarioID),
				},
				Expect: contains("id", "m"),
			},
			{
				StepID: "post_approval", Description: "Post approval request in procurement Slack channel.",
				Tool: "slack.post", Args: map[string]any{
					"channel": "#procurement",
					"text":    fmt.Sprintf("Request approval for %s. Budget $%d. Evidence reviewed in browser/docs.", scenarioID, budget),
				},
				Expect: contains("ts", ""),
			},
			{
				StepID: "create_ticket", Description: "Create ticket with workflow completion note.",
				Tool: "tickets.create", Args: map[string]any{
					"title": scenarioID + " execution summary",
					"description": fmt.Sprintf("%s executed: quote requested and approval posted.", scenarioID),
					"assignee":    "agent",
				},
				Expect: contains("ticket_id", "TCK-"),
			},
		}
	}
}
