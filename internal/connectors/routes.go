package connectors

// Route is one TOOL_ROUTES entry: which service owns a tool, the operation
// name used in policy/receipt bookkeeping, and its operation class.
type Route struct {
	Service        ServiceName
	Operation      string
	OperationClass OperationClass
}

// DefaultRoutes mirrors vei/connectors/api.py's TOOL_ROUTES: every tool
// exposed by a twin, classified by read/write_safe/write_risky so the
// policy gate can act on it in live mode.
func DefaultRoutes() map[string]Route {
	return map[string]Route{
		// browser
		"browser.read":  {ServiceBrowser, "read", OpRead},
		"browser.click": {ServiceBrowser, "click", OpWriteSafe},
		"browser.back":  {ServiceBrowser, "back", OpRead},
		"browser.find":  {ServiceBrowser, "find", OpRead},

		// mail
		"mail.list":    {ServiceMail, "list", OpRead},
		"mail.open":    {ServiceMail, "open", OpRead},
		"mail.compose": {ServiceMail, "compose", OpWriteSafe},
		"mail.reply":   {ServiceMail, "reply", OpWriteSafe},

		// slack
		"slack.list_channels": {ServiceSlack, "list_channels", OpRead},
		"slack.post":          {ServiceSlack, "post", OpWriteSafe},
		"slack.react":         {ServiceSlack, "react", OpWriteSafe},
		"slack.history":       {ServiceSlack, "history", OpRead},

		// calendar
		"calendar.list_events":   {ServiceCalendar, "list_events", OpRead},
		"calendar.create_event":  {ServiceCalendar, "create_event", OpWriteSafe},
		"calendar.update_event":  {ServiceCalendar, "update_event", OpWriteSafe},
		"calendar.cancel_event":  {ServiceCalendar, "cancel_event", OpWriteRisky},
		"calendar.accept":        {ServiceCalendar, "accept", OpWriteSafe},
		"calendar.decline":       {ServiceCalendar, "decline", OpWriteSafe},

		// docs
		"docs.list":   {ServiceDocs, "list", OpRead},
		"docs.read":   {ServiceDocs, "read", OpRead},
		"docs.create": {ServiceDocs, "create", OpWriteSafe},
		"docs.update": {ServiceDocs, "update", OpWriteSafe},
		"docs.search": {ServiceDocs, "search", OpRead},

		// tickets
		"tickets.list":        {ServiceTickets, "list", OpRead},
		"tickets.get":         {ServiceTickets, "get", OpRead},
		"tickets.create":      {ServiceTickets, "create", OpWriteSafe},
		"tickets.update":      {ServiceTickets, "update", OpWriteSafe},
		"tickets.transition":  {ServiceTickets, "transition", OpWriteSafe},
		"tickets.add_comment": {ServiceTickets, "add_comment", OpWriteSafe},

		// db
		"db.list_tables":   {ServiceDB, "list_tables", OpRead},
		"db.describe_table": {ServiceDB, "describe_table", OpRead},
		"db.query":         {ServiceDB, "query", OpRead},
		"db.upsert":        {ServiceDB, "upsert", OpWriteSafe},

		// erp
		"erp.create_po":       {ServiceERP, "create_po", OpWriteSafe},
		"erp.get_po":          {ServiceERP, "get_po", OpRead},
		"erp.list_pos":        {ServiceERP, "list_pos", OpRead},
		"erp.receive_goods":   {ServiceERP, "receive_goods", OpWriteSafe},
		"erp.submit_invoice":  {ServiceERP, "submit_invoice", OpWriteSafe},
		"erp.get_invoice":     {ServiceERP, "get_invoice", OpRead},
		"erp.list_invoices":   {ServiceERP, "list_invoices", OpRead},
		"erp.match_three_way": {ServiceERP, "match_three_way", OpRead},
		"erp.post_payment":    {ServiceERP, "post_payment", OpWriteRisky},

		// crm
		"crm.create_contact":     {ServiceCRM, "create_contact", OpWriteSafe},
		"crm.create_company":     {ServiceCRM, "create_company", OpWriteSafe},
		"crm.create_deal":        {ServiceCRM, "create_deal", OpWriteSafe},
		"crm.update_deal_stage":  {ServiceCRM, "update_deal_stage", OpWriteSafe},
		"crm.log_activity":       {ServiceCRM, "log_activity", OpWriteSafe},
		"crm.list_contacts":      {ServiceCRM, "list_contacts", OpRead},
		"crm.list_companies":     {ServiceCRM, "list_companies", OpRead},
		"crm.list_deals":         {ServiceCRM, "list_deals", OpRead},

		// okta / identity
		"okta.list_users":           {ServiceOkta, "list_users", OpRead},
		"okta.get_user":             {ServiceOkta, "get_user", OpRead},
		"okta.activate_user":        {ServiceOkta, "activate_user", OpWriteRisky},
		"okta.suspend_user":         {ServiceOkta, "suspend_user", OpWriteRisky},
		"okta.unsuspend_user":       {ServiceOkta, "unsuspend_user", OpWriteRisky},
		"okta.deactivate_user":      {ServiceOkta, "deactivate_user", OpWriteRisky},
		"okta.reset_password":       {ServiceOkta, "reset_password", OpWriteRisky},
		"okta.list_groups":          {ServiceOkta, "list_groups", OpRead},
		"okta.assign_group":         {ServiceOkta, "assign_group", OpWriteSafe},
		"okta.unassign_group":       {ServiceOkta, "unassign_group", OpWriteSafe},
		"okta.list_applications":    {ServiceOkta, "list_applications", OpRead},
		"okta.assign_application":   {ServiceOkta, "assign_application", OpWriteSafe},
		"okta.unassign_application": {ServiceOkta, "unassign_application", OpWriteSafe},

		// servicedesk
		"servicedesk.create_incident":     {ServiceServiceDesk, "create_incident", OpWriteSafe},
		"servicedesk.transition_incident": {ServiceServiceDesk, "transition_incident", OpWriteSafe},
		"servicedesk.create_request":      {ServiceServiceDesk, "create_request", OpWriteSafe},
		"servicedesk.transition_request":  {ServiceServiceDesk, "transition_request", OpWriteSafe},
		"servicedesk.update_approval":     {ServiceServiceDesk, "update_approval", OpWriteRisky},
		"servicedesk.list_incidents":      {ServiceServiceDesk, "list_incidents", OpRead},
		"servicedesk.list_requests":       {ServiceServiceDesk, "list_requests", OpRead},
	}
}
