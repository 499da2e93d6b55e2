/*
Package ports defines the driven ports (interfaces) around the promptloom engine.

The render and diff core never touches them; these interfaces let the outer
surfaces (CLI, HTTP, MCP, dataset replay) work with various storage backends
and project sources.

# Key Interfaces

  - ProjectStore, SessionStore, RunStore, DatasetStore: persistence of the collaborator records.
  - ProjectLoader: Read-only project sources (e.g., a Loam directory of markdown nodes).
  - DistributedLocker: Provides distributed locking for handling concurrent session access.

Every store implementation is expected to pass the matching Run*Contract suite.
*/
package ports
