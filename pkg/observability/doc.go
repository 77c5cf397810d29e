/*
Package observability provides observers for monitoring conversations.

Metrics counts navigation events into Prometheus collectors, and
NewLogObserver writes every notification to a structured logger. Both are
plain domain.Observer values: subscribe them to a root conversation and
they see the activity of every nested subroutine too.
*/
package observability
