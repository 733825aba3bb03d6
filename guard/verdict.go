package guard

import "strings"

// ReasonUnparseable is the rejection reason for responses that start with
// neither APPROVE nor REJECT.
const ReasonUnparseable = "unparseable guard response"

// Verdict is the outcome of a guard check. It is computed per check and
// never cached.
type Verdict struct {
	Approved bool
	Reason   string
}

// Approve returns an approving verdict.
func Approve() Verdict { return Verdict{Approved: true} }

// Reject returns a rejecting verdict.
func Reject(reason string) Verdict { return Verdict{Reason: reason} }

// String renders the verdict as "APPROVE" or "REJECT: <reason>".
func (v Verdict) String() string {
	if v.Approved {
		return "APPROVE"
	}
	return "REJECT: " + v.Reason
}

// ParseVerdict reads a leading APPROVE or REJECT token, case-insensitively
// and ignoring surrounding whitespace. Anything else is a rejection.
func ParseVerdict(text string) Verdict {
	trimmed := strings.TrimSpace(text)
	upper := strings.ToUpper(trimmed)

	switch {
	case strings.HasPrefix(upper, "APPROVE"):
		return Approve()
	case strings.HasPrefix(upper, "REJECT"):
		reason := strings.TrimSpace(trimmed[len("REJECT"):])
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		if reason == "" {
			reason = "no reason given"
		}
		return Reject(reason)
	default:
		return Reject(ReasonUnparseable)
	}
}
