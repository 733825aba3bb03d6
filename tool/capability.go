package tool

import "strings"

// Capability is the typed identifier of a tool an agent may be granted.
// A capability resolves to the registered tool of the same name.
type Capability string

// Built-in capabilities.
const (
	CapWebSearch          Capability = "web_search"
	CapBrowser            Capability = "browser"
	CapFinancialSearch    Capability = "financial_search"
	CapFinancialMetrics   Capability = "financial_metrics"
	CapReadFilings        Capability = "read_filings"
	CapSkill              Capability = "skill"
	CapRememberFact       Capability = "remember_fact"
	CapRecallMemories     Capability = "recall_memories"
	CapSearchCodebase     Capability = "search_codebase"
	CapCodeExec           Capability = "code_exec"
	CapDraftEmail         Capability = "draft_email"
	CapDispatchAngel      Capability = "dispatch_angel"
	CapTaskContext        Capability = "task_context"
	CapGetBalance         Capability = "get_balance"
	CapTransferFunds      Capability = "transfer_funds"
	CapProposeSafeTx      Capability = "propose_safe_tx"
	CapQuerySafeStatus    Capability = "query_safe_status"
	CapProposeSquadsTx    Capability = "propose_squads_tx"
	CapQuerySquadsStatus  Capability = "query_squads_status"
	CapQueryProtocolState Capability = "query_protocol_state"
)

var knownCapabilities = map[Capability]struct{}{
	CapWebSearch: {}, CapBrowser: {}, CapFinancialSearch: {}, CapFinancialMetrics: {},
	CapReadFilings: {}, CapSkill: {}, CapRememberFact: {}, CapRecallMemories: {},
	CapSearchCodebase: {}, CapCodeExec: {}, CapDraftEmail: {}, CapDispatchAngel: {},
	CapTaskContext: {}, CapGetBalance: {}, CapTransferFunds: {}, CapProposeSafeTx: {},
	CapQuerySafeStatus: {}, CapProposeSquadsTx: {}, CapQuerySquadsStatus: {},
	CapQueryProtocolState: {},
}

// IsBuiltin reports whether c is one of the built-in capabilities.
func (c Capability) IsBuiltin() bool {
	_, ok := knownCapabilities[c]
	return ok
}

// ParseCapabilities normalizes raw names (trimmed, lowercase) and drops blanks
// and duplicates while keeping the first-seen order.
func ParseCapabilities(names []string) []Capability {
	seen := make(map[Capability]struct{}, len(names))
	caps := make([]Capability, 0, len(names))
	for _, n := range names {
		c := Capability(strings.ToLower(strings.TrimSpace(n)))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		caps = append(caps, c)
	}
	return caps
}

// Role names a fixed tool subset used by orchestration phases.
type Role string

// Orchestration roles.
const (
	RoleMind    Role = "mind"
	RoleProphet Role = "prophet"
	RoleWill    Role = "will"
)

// roleCapabilities lists the tools granted to each analytical role. The Will
// is not listed: it receives every registered tool.
var roleCapabilities = map[Role][]Capability{
	RoleMind: {
		CapFinancialSearch, CapFinancialMetrics, CapReadFilings, CapBrowser,
		CapWebSearch, CapSkill, CapRememberFact, CapRecallMemories,
	},
	RoleProphet: {
		CapFinancialSearch, CapFinancialMetrics, CapWebSearch, CapBrowser,
		CapSkill, CapRememberFact, CapRecallMemories,
	},
}
