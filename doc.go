/*
Package flowtalk walks conversation graphs: directed graphs of steps, parsed
from a flowchart, where each step decides its own readiness and completion.

A Conversation keeps a breadcrumb history, branches to the first ready
successor, moves back and forth, and fans every navigation event out to
observers. A subroutine vertex embeds a whole nested conversation; the parent
delegates to it until the child is exhausted and then carries on.

# Concept

Vertices carry behavior through modules. A module is a factory that turns a
vertex into a step hook answering three questions: is the step ready to be
entered, is it complete, and what does it render. The built-in modules
(message, prompt, confirm, gate) share an answer board so later steps can
read earlier answers, and gates can branch on them with expressions.

# Usage

	flow, err := schema.Decode(data, schema.FormatYAML)
	if err != nil {
		log.Fatal(err)
	}

	conv, err := flowtalk.New(ctx, flow)
	if err != nil {
		log.Fatal(err)
	}

	step, err := conv.Continue(ctx, "")

Continue with an empty id advances to the first ready successor of a complete
step and returns the current step unchanged when it is not complete yet. With
an id it jumps along that edge. Back returns to the previous step. Once the
walk is exhausted Continue returns nil and Status reports StatusDone.

# Hosting

Conversations allow one navigation call at a time. Servers keep them in a
session.Manager, which serializes calls per session and can take a
distributed lock (Redis) around each one. The http and mcp adapters expose
managed sessions over REST and the Model Context Protocol, and the flowtalk
command runs them in a terminal.
*/
package flowtalk
