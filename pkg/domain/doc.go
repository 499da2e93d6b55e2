/*
Package domain contains the core domain models of the promptloom engine.

It defines the inputs of a render (Project, ProjectNode, ProjectVariable), its
output (TraceRun, TraceSegment, TraceMessage) and the rows of a line comparison
(DiffLine). This package is kept pure and free of external dependencies like
I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - ProjectNode: A typed unit of conversational content (system, user, assistant, tool, memory, retrieval, text).
  - ProjectVariable: A named value substituted into `{{name}}` placeholders.
  - TraceRun: The flattened transcript plus per-node segments and diagnostics.
  - DiffLine: One aligned row of a two-column line comparison.
  - Session, Dataset, RunRecord: Collaborator records persisted by adapters.
*/
package domain
