// Package policy provides the declarative pre-execution policies bound to
// tools through tool.Binding:
//
//   - AllowlistPolicy guards irreversible external effects (asset transfers)
//     by checking the destination against a hot-reloadable Allowlist.
//   - ConfirmationPolicy guards sensitive local actions by requiring a
//     literal token in the latest user utterance.
//
// Both return a refusal string instead of an error so the calling model can
// read and react to the denial.
package policy
