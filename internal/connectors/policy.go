package connectors

import (
	"os"
	"strconv"
	"strings"
)

// DefaultPolicyGate is the stock gate: a service.operation blocklist checked
// first, then a mode/class decision table (spec.md §4.4).
type DefaultPolicyGate struct {
	LiveAllowWriteSafe  bool
	LiveAllowWriteRisky bool
	BlockedOperations   map[string]bool // "service.operation" -> blocked
}

// NewDefaultPolicyGate returns a gate with both live-write flags off and no
// blocklist, matching the original's conservative default.
func NewDefaultPolicyGate() *DefaultPolicyGate {
	return &DefaultPolicyGate{BlockedOperations: map[string]bool{}}
}

// PolicyGateFromEnv builds a DefaultPolicyGate from VEI_LIVE_ALLOW_WRITE_SAFE,
// VEI_LIVE_ALLOW_WRITE_RISKY, and VEI_LIVE_BLOCK_OPS (comma-separated
// "service.operation" pairs), mirroring DefaultPolicyGate.from_env().
func PolicyGateFromEnv() *DefaultPolicyGate {
	return &DefaultPolicyGate{
		LiveAllowWriteSafe:  parseBool(os.Getenv("VEI_LIVE_ALLOW_WRITE_SAFE")),
		LiveAllowWriteRisky: parseBool(os.Getenv("VEI_LIVE_ALLOW_WRITE_RISKY")),
		BlockedOperations:   parseBlockedOperations(os.Getenv("VEI_LIVE_BLOCK_OPS")),
	}
}

func parseBool(raw string) bool {
	raw = strings.TrimSpace(strings.ToLower(raw))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		b, err := strconv.ParseBool(raw)
		return err == nil && b
	}
}

func parseBlockedOperations(raw string) map[string]bool {
	out := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[part] = true
		}
	}
	return out
}

// Evaluate applies the blocklist first, then falls through by mode and
// operation class (spec.md §4.4): non-live modes always allow; read always
// allows; write_safe allows in live only if the flag is set, else it
// requires approval; write_risky allows in live only if its flag is set,
// else it is denied outright.
func (g *DefaultPolicyGate) Evaluate(req ConnectorRequest, mode AdapterMode) PolicyDecision {
	operationID := string(req.Service) + "." + req.Operation
	if g.BlockedOperations[operationID] {
		return PolicyDecision{Action: ActionDeny, Reason: "operation " + operationID + " is blocked"}
	}
	if mode != ModeLive {
		return PolicyDecision{Action: ActionAllow, Reason: "non-live mode"}
	}
	switch req.OperationClass {
	case OpRead:
		return PolicyDecision{Action: ActionAllow, Reason: "read operation"}
	case OpWriteSafe:
		if g.LiveAllowWriteSafe {
			return PolicyDecision{Action: ActionAllow, Reason: "live write_safe allowed"}
		}
		return PolicyDecision{Action: ActionRequireApproval, Reason: "live write_safe requires approval"}
	case OpWriteRisky:
		if g.LiveAllowWriteRisky {
			return PolicyDecision{Action: ActionAllow, Reason: "live write_risky allowed"}
		}
		return PolicyDecision{Action: ActionDeny, Reason: "live write_risky denied by default"}
	default:
		return PolicyDecision{Action: ActionAllow, Reason: "unclassified operation"}
	}
}
