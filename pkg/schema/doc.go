// Package schema reads, writes and checks flow documents.
//
// A flow document is the serialized form of a conversation graph:
//
//	type: conversation
//	vertices:
//	  hello:
//	    kind: entry
//	    text: Welcome!
//	    props:
//	      module: message
//	  name:
//	    text: What is your name?
//	    props:
//	      module: prompt
//	      type: string
//	edges:
//	  - start: hello
//	    end: name
//
// Decode checks the document against a structural JSON schema before
// building a domain.Flow; ValidateFlow then checks graph invariants such as
// dangling edges. Both report findings as an *AggregateError.
//
// The package also carries a small type system (string, int, float, bool,
// slices and enums) used to validate and coerce answers collected by steps:
//
//	typ, _ := schema.ParseType("[int]")
//	v, err := typ.Coerce("1, 2, 3")
package schema
