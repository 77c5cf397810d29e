/*
Package domain contains the core domain models and contracts for the Flowtalk engine.

It defines the graph a conversation walks (Flow, Vertex, Edge), the runtime
materialization of a visited vertex (Step), and the capability contracts a
behavior module must satisfy (StepHook, Composite). This package is kept pure
and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Flow: a parsed conversation graph (vertices, directed edges, entry ids).
  - Vertex: a point in the graph; "entry" vertices may start a conversation and
    "subroutine" vertices embed a whole nested conversation.
  - Step: a visited vertex, carrying its hook and its incoming/outgoing edges.
  - StepHook: the readiness/completion/render contract of a behavior module.
  - Observer: a subscriber notified on every navigation event.
*/
package domain
