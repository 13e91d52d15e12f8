// Package identity implements the Identity/Okta twin (spec.md §4.3.9): a
// user/group/application state machine with default seed data.
package identity

import (
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"
	"github.com/haasonsaas/vei/internal/bus"
	"github.com/haasonsaas/vei/internal/router"
)

// UserStatus is the Okta user lifecycle state.
type UserStatus string

const (
	StatusActive       UserStatus = "ACTIVE"
	StatusSuspended    UserStatus = "SUSPENDED"
	StatusDeprovisioned UserStatus = "DEPROVISIONED"
)

// User, Group, Application are the twin's entity records.
type User struct {
	UserID string
	Email  string
	Title  string
	Status UserStatus
	Groups map[string]bool
	Apps   map[string]bool
}

type Group struct {
	GroupID string
	Name    string
	Members map[string]bool
}

type Application struct {
	AppID   string
	Name    string
	Members map[string]bool
}

// Twin implements bus.Receiver and router.ToolProvider for the "okta." prefix.
type Twin struct {
	bus   *bus.Bus
	users map[string]*User
	groups map[string]*Group
	apps  map[string]*Application
	resetSeq int
	jwtSigningKey []byte
}

// New constructs an Okta twin seeded with the default scenario users
// (identity.py: jane@example.com active security lead, mike@example.com
// suspended IT analyst).
func New(b *bus.Bus) *Twin {
	t := &Twin{
		bus: b, users: make(map[string]*User), groups: make(map[string]*Group),
		apps: make(map[string]*Application), resetSeq: 1,
		jwtSigningKey: []byte("vei-identity-dev-signing-key"),
	}
	t.groups["GRP-security"] = &Group{GroupID: "GRP-security", Name: "Security", Members: map[string]bool{}}
	t.groups["GRP-it"] = &Group{GroupID: "GRP-it", Name: "IT", Members: map[string]bool{}}
	t.apps["APP-sso"] = &Application{AppID: "APP-sso", Name: "Corporate SSO", Members: map[string]bool{}}

	t.users["jane@example.com"] = &User{
		UserID: "jane@example.com", Email: "jane@example.com", Title: "Security Lead", Status: StatusActive,
		Groups: map[string]bool{"GRP-security": true}, Apps: map[string]bool{"APP-sso": true},
	}
	t.users["mike@example.com"] = &User{
		UserID: "mike@example.com", Email: "mike@example.com", Title: "IT Analyst", Status: StatusSuspended,
		Groups: map[string]bool{"GRP-it": true}, Apps: map[string]bool{},
	}
	t.syncRelationships()
	return t
}

// syncRelationships keeps group/app membership bidirectionally consistent
// with each user's Groups/Apps sets (identity.py: _sync_relationships).
func (t *Twin) syncRelationships() {
	for uid, u := range t.users {
		for gid := range u.Groups {
			if g, ok := t.groups[gid]; ok {
				g.Members[uid] = true
			}
		}
		for aid := range u.Apps {
			if a, ok := t.apps[aid]; ok {
				a.Members[uid] = true
			}
		}
	}
}

func (t *Twin) userPayload(u *User) map[string]any {
	groups := make([]string, 0, len(u.Groups))
	for g := range u.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	apps := make([]string, 0, len(u.Apps))
	for a := range u.Apps {
		apps = append(apps, a)
	}
	sort.Strings(apps)
	return map[string]any{
		"user_id": u.UserID, "email": u.Email, "title": u.Title, "status": string(u.Status),
		"groups": groups, "applications": apps,
	}
}

// ListUsers returns every user.
func (t *Twin) ListUsers(args router.ListArgs) (map[string]any, error) {
	ids := make([]string, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.userPayload(t.users[id]))
	}
	sortBy := args.SortBy
	if sortBy == "" {
		sortBy = "user_id"
	}
	router.SortRows(rows, sortBy, args.SortDir)
	if args.Legacy {
		return map[string]any{"users": rows}, nil
	}
	page, err := router.PageRows(rows, "users", args.Limit, args.Cursor, "okta.")
	if err != nil {
		return nil, err
	}
	return page.ToMap(), nil
}

// GetUser returns a single user.
func (t *Twin) GetUser(userID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	return t.userPayload(u), nil
}

// ActivateUser moves a user to ACTIVE; rejects a DEPROVISIONED user.
func (t *Twin) ActivateUser(userID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	if u.Status == StatusDeprovisioned {
		return nil, router.Errorf("okta.invalid_state", "cannot activate a deprovisioned user: %s", userID)
	}
	u.Status = StatusActive
	return t.userPayload(u), nil
}

// SuspendUser moves a user to SUSPENDED; rejects a DEPROVISIONED user.
func (t *Twin) SuspendUser(userID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	if u.Status == StatusDeprovisioned {
		return nil, router.Errorf("okta.invalid_state", "cannot suspend a deprovisioned user: %s", userID)
	}
	u.Status = StatusSuspended
	return t.userPayload(u), nil
}

// UnsuspendUser moves a SUSPENDED user back to ACTIVE.
func (t *Twin) UnsuspendUser(userID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	if u.Status != StatusSuspended {
		return nil, router.Errorf("okta.invalid_state", "user %s is not suspended", userID)
	}
	u.Status = StatusActive
	return t.userPayload(u), nil
}

// DeactivateUser moves a user to DEPROVISIONED.
func (t *Twin) DeactivateUser(userID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	u.Status = StatusDeprovisioned
	return t.userPayload(u), nil
}

// ResetPassword mints a reset token, JWT-signed so the receipt can carry a
// verifiable, self-contained claim without a live Okta round trip.
func (t *Twin) ResetPassword(userID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	seq := t.resetSeq
	t.resetSeq++
	now := t.bus.ClockMs()
	expiresMs := int64(3_600_000)
	claims := jwt.MapClaims{
		"user_id": u.UserID,
		"seq":     seq,
		"iat":     now,
		"exp":     now + expiresMs,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.jwtSigningKey)
	if err != nil {
		signed = fmt.Sprintf("RST-%04d-%s", seq, userID)
	}
	return map[string]any{"user_id": userID, "reset_token": signed, "expires_ms": expiresMs}, nil
}

// ListGroups returns every group.
func (t *Twin) ListGroups() map[string]any {
	ids := make([]string, 0, len(t.groups))
	for id := range t.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		g := t.groups[id]
		members := make([]string, 0, len(g.Members))
		for m := range g.Members {
			members = append(members, m)
		}
		sort.Strings(members)
		rows = append(rows, map[string]any{"group_id": g.GroupID, "name": g.Name, "members": members})
	}
	return map[string]any{"groups": rows}
}

// AssignGroup/UnassignGroup mutate both sides of the user<->group relation.
func (t *Twin) AssignGroup(userID, groupID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	g, ok := t.groups[groupID]
	if !ok {
		return nil, router.Errorf("okta.group_not_found", "unknown group: %s", groupID)
	}
	u.Groups[groupID] = true
	g.Members[userID] = true
	return t.userPayload(u), nil
}

func (t *Twin) UnassignGroup(userID, groupID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	g, ok := t.groups[groupID]
	if !ok {
		return nil, router.Errorf("okta.group_not_found", "unknown group: %s", groupID)
	}
	delete(u.Groups, groupID)
	delete(g.Members, userID)
	return t.userPayload(u), nil
}

// ListApplications returns every application.
func (t *Twin) ListApplications() map[string]any {
	ids := make([]string, 0, len(t.apps))
	for id := range t.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		a := t.apps[id]
		members := make([]string, 0, len(a.Members))
		for m := range a.Members {
			members = append(members, m)
		}
		sort.Strings(members)
		rows = append(rows, map[string]any{"app_id": a.AppID, "name": a.Name, "members": members})
	}
	return map[string]any{"applications": rows}
}

// AssignApplication/UnassignApplication mutate both sides of the user<->app relation.
func (t *Twin) AssignApplication(userID, appID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	a, ok := t.apps[appID]
	if !ok {
		return nil, router.Errorf("okta.app_not_found", "unknown application: %s", appID)
	}
	u.Apps[appID] = true
	a.Members[userID] = true
	return t.userPayload(u), nil
}

func (t *Twin) UnassignApplication(userID, appID string) (map[string]any, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, router.Errorf("okta.user_not_found", "unknown user: %s", userID)
	}
	a, ok := t.apps[appID]
	if !ok {
		return nil, router.Errorf("okta.app_not_found", "unknown application: %s", appID)
	}
	delete(u.Apps, appID)
	delete(a.Members, userID)
	return t.userPayload(u), nil
}

// Deliver applies a scheduled identity event, dispatching on an explicit op.
func (t *Twin) Deliver(payload map[string]any) (map[string]any, error) {
	op, _ := payload["op"].(string)
	userID, _ := payload["user_id"].(string)
	switch op {
	case "activate":
		return t.ActivateUser(userID)
	case "suspend":
		return t.SuspendUser(userID)
	case "unsuspend":
		return t.UnsuspendUser(userID)
	case "deactivate":
		return t.DeactivateUser(userID)
	case "assign_group":
		groupID, _ := payload["group_id"].(string)
		return t.AssignGroup(userID, groupID)
	case "assign_application":
		appID, _ := payload["app_id"].(string)
		return t.AssignApplication(userID, appID)
	default:
		return nil, router.Errorf("invalid_args", "unrecognized identity delivery op: %s", op)
	}
}

// Specs implements router.ToolProvider.
func (t *Twin) Specs() []router.ToolSpec {
	return []router.ToolSpec{
		{Name: "okta.list_users", Description: "List users.", DefaultLatencyMs: 120, LatencyJitterMs: 40},
		{Name: "okta.get_user", Description: "Fetch a single user.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "okta.activate_user", Description: "Activate a user.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 160, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("user_id")},
		{Name: "okta.deactivate_user", Description: "Deprovision a user.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 160, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("user_id")},
		{Name: "okta.suspend_user", Description: "Suspend a user.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 150, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("user_id")},
		{Name: "okta.unsuspend_user", Description: "Unsuspend a user.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 150, LatencyJitterMs: 50, InputSchema: router.RequiredSchema("user_id")},
		{Name: "okta.reset_password", Description: "Issue a password reset token.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 180, LatencyJitterMs: 60, InputSchema: router.RequiredSchema("user_id")},
		{Name: "okta.list_groups", Description: "List groups.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "okta.assign_group", Description: "Assign a user to a group.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 140, LatencyJitterMs: 40, InputSchema: router.RequiredSchema("user_id", "group_id")},
		{Name: "okta.unassign_group", Description: "Remove a user from a group.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 140, LatencyJitterMs: 40, InputSchema: router.RequiredSchema("user_id", "group_id")},
		{Name: "okta.list_applications", Description: "List applications.", DefaultLatencyMs: 100, LatencyJitterMs: 30},
		{Name: "okta.assign_application", Description: "Assign a user to an application.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 140, LatencyJitterMs: 40, InputSchema: router.RequiredSchema("user_id", "app_id")},
		{Name: "okta.unassign_application", Description: "Remove a user from an application.", SideEffects: []string{"identity_mutation"}, DefaultLatencyMs: 140, LatencyJitterMs: 40, InputSchema: router.RequiredSchema("user_id", "app_id")},
	}
}

// Prefixes implements router.ToolProvider.
func (t *Twin) Prefixes() []string { return []string{"okta."} }

// State implements router.ToolProvider for state_snapshot's include_state digest.
func (t *Twin) State() map[string]any {
	users := make(map[string]any, len(t.users))
	for id, u := range t.users {
		users[id] = map[string]any{"status": string(u.Status)}
	}
	return map[string]any{
		"users":      users,
		"group_count": len(t.groups),
		"app_count":   len(t.apps),
	}
}

// Call implements router.ToolProvider.
func (t *Twin) Call(name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "okta.list_users":
		return t.ListUsers(router.ListArgsFromMap(args))
	case "okta.get_user":
		id, _ := args["user_id"].(string)
		return t.GetUser(id)
	case "okta.activate_user":
		id, _ := args["user_id"].(string)
		return t.ActivateUser(id)
	case "okta.deactivate_user":
		id, _ := args["user_id"].(string)
		return t.DeactivateUser(id)
	case "okta.suspend_user":
		id, _ := args["user_id"].(string)
		return t.SuspendUser(id)
	case "okta.unsuspend_user":
		id, _ := args["user_id"].(string)
		return t.UnsuspendUser(id)
	case "okta.reset_password":
		id, _ := args["user_id"].(string)
		return t.ResetPassword(id)
	case "okta.list_groups":
		return t.ListGroups(), nil
	case "okta.assign_group":
		userID, _ := args["user_id"].(string)
		groupID, _ := args["group_id"].(string)
		return t.AssignGroup(userID, groupID)
	case "okta.unassign_group":
		userID, _ := args["user_id"].(string)
		groupID, _ := args["group_id"].(string)
		return t.UnassignGroup(userID, groupID)
	case "okta.list_applications":
		return t.ListApplications(), nil
	case "okta.assign_application":
		userID, _ := args["user_id"].(string)
		appID, _ := args["app_id"].(string)
		return t.AssignApplication(userID, appID)
	case "okta.unassign_application":
		userID, _ := args["user_id"].(string)
		appID, _ := args["app_id"].(string)
		return t.UnassignApplication(userID, appID)
	default:
		return nil, router.Errorf("unknown_tool", "no such tool: %s", name)
	}
}
