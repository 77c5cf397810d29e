/*
Package ports defines the driven ports (interfaces) of the Flowtalk engine.

These interfaces decouple the navigation core from the collaborators it consumes,
so graphs can come from files, Redis or Loam, and behavior modules from any
registry.

# Key Interfaces

  - FlowLoader: resolves an external source locator (a subroutine's src) to a Flow.
  - FlowStore: a FlowLoader that can also persist and enumerate flows.
  - ModuleResolver: resolves a module reference (plus export key) to a step Factory.
  - DistributedLocker: coordinates access to a session across replicas.
*/
package ports
