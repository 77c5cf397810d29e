// Package modules provides the built-in step behaviors a flow document can
// name in a vertex's "module" prop:
//
//   - message: shows text; complete once acknowledged, or at once with auto: true.
//   - prompt: asks for a typed answer (type: int, [string], enum(a|b), ...).
//   - confirm: a yes/no prompt recording a boolean.
//   - gate: an invisible branch selector; ready only while its "when"
//     expression holds.
//
// Every module honors an optional "when" expression for readiness. Answers
// live on a shared Board keyed by vertex id, so a revisited step (which is
// always re-instantiated) finds its previous answer.
package modules
