/*
Package resolve turns dynamic project variables into values before a render.

A dynamic variable names its source with a URL in its Resolver field. The
scheme selects a Resolver from the Registry:

  - chat://<session-id>: the tail of a chat session, as transcript text.
  - sqlite://<path>, postgres://..., sql://<datasource-id>: the first row of a read-only query.
  - neo4j://, milvus://: registered but not enabled in this build.

ResolveAll never fails. Every variable yields one diagnostic message, plus a
message_cap_applied note when its chat history was cut, and a variable that
cannot be resolved is left out so the renderer reports it as missing.
*/
package resolve
