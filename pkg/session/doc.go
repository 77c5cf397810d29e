/*
Package session keeps live conversations addressable by id.

A Conversation tolerates one outstanding navigation call at a time, so the
Manager serializes every call on a session behind a reference counted local
mutex and, when configured, a distributed lock shared across replicas.
Each session owns its answer board and its own registry of built-in modules.
*/
package session
