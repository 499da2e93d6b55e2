/*
Package session implements chat session management and rendering.

Sessions are the source of "chat://" variables: RenderText turns the tail of
a session into "[Role]: content" transcript lines. The Manager serializes
access per session across goroutines, and across replicas when a
DistributedLocker is configured.
*/
package session
