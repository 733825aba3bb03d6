package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/tool"
	"gopkg.in/yaml.v3"
)

// DestinationAliases are the argument names searched for a transfer
// destination, in priority order.
var DestinationAliases = []string{"to", "destination", "recipient", "address"}

// Normalize canonicalizes an address for membership checks. Hex EVM
// addresses are parsed with go-ethereum; everything else is trimmed and
// lower-cased.
func Normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return strings.ToLower(addr)
}

// Allowlist is a set of permitted destinations that can be swapped
// atomically while policies read it.
type Allowlist struct {
	set atomic.Pointer[map[string]struct{}]
}

// NewAllowlist creates an allowlist from raw addresses.
func NewAllowlist(addrs ...string) *Allowlist {
	a := &Allowlist{}
	a.Replace(addrs)
	return a
}

// Replace swaps the whole set.
func (a *Allowlist) Replace(addrs []string) {
	set := make(map[string]struct{}, len(addrs))
	for _, raw := range addrs {
		if n := Normalize(raw); n != "" {
			set[n] = struct{}{}
		}
	}
	a.set.Store(&set)
}

// Contains reports whether addr (any case) is permitted.
func (a *Allowlist) Contains(addr string) bool {
	set := a.set.Load()
	if set == nil {
		return false
	}
	_, ok := (*set)[Normalize(addr)]
	return ok
}

// Len returns the number of permitted destinations.
func (a *Allowlist) Len() int {
	if set := a.set.Load(); set != nil {
		return len(*set)
	}
	return 0
}

// Addresses returns the normalized entries, sorted.
func (a *Allowlist) Addresses() []string {
	set := a.set.Load()
	if set == nil {
		return nil
	}
	out := make([]string, 0, len(*set))
	for k := range *set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseList splits a comma separated address list, as found in the
// TREASURY_WHITELIST environment variable.
func ParseList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type allowlistFile struct {
	Addresses []string `yaml:"addresses"`
}

// ReadAllowlistFile reads addresses from a YAML or JSON file. Both a bare
// list and a mapping with an `addresses` key are accepted.
func ReadAllowlistFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}

	var list []string
	if err := yaml.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var doc allowlistFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse allowlist %s: %w", path, err)
	}
	return doc.Addresses, nil
}

// AllowlistPolicy denies calls whose destination is not on the allowlist.
type AllowlistPolicy struct {
	list    *Allowlist
	aliases []string
}

// NewAllowlistPolicy creates the policy. Without aliases DestinationAliases is used.
func NewAllowlistPolicy(list *Allowlist, aliases ...string) *AllowlistPolicy {
	if len(aliases) == 0 {
		aliases = DestinationAliases
	}
	return &AllowlistPolicy{list: list, aliases: aliases}
}

// Name implements tool.Policy.
func (p *AllowlistPolicy) Name() string { return "allowlist" }

// Evaluate implements tool.Policy.
func (p *AllowlistPolicy) Evaluate(toolCtx *core.ToolContext, toolName string, args map[string]any) tool.Decision {
	dest := Normalize(destination(args, p.aliases))
	if dest == "" || !p.list.Contains(dest) {
		return tool.Deny(SecurityBlock(dest))
	}
	toolCtx.LogInfo("policy.allowlist.passed", "tool", toolName, "destination", dest)
	return tool.Allow()
}

// SecurityBlock renders the allowlist refusal.
func SecurityBlock(addr string) string {
	return fmt.Sprintf("⛔ SECURITY BLOCK: The address '%s' is NOT in the Treasury Whitelist. Transfer aborted.", addr)
}

// destination returns the first non-empty string argument among aliases.
func destination(args map[string]any, aliases []string) string {
	for _, alias := range aliases {
		if v, ok := args[alias].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
