// Package integrations provides the HTTP clients the dashboard uses to talk
// to external services.
//
//   - [classroom]: the classroom REST API (teacher login, students,
//     assignments and per-student tree logs)
//   - [chathistory]: the chat-history store, queried when a teacher opens a
//     node to read the conversation that produced it
//
// # Shared Infrastructure
//
// [Client] is embedded by every service client. It provides:
//
//   - JSON requests with default and per-request headers
//   - client-side rate limiting ([golang.org/x/time/rate])
//   - retry with backoff for idempotent requests ([httputil.Retry])
//   - response caching through any [cache.Cache] backend
//   - request events for [observability.HTTPHooks]
//
// [classroom]: github.com/matzehuels/treereplay/pkg/integrations/classroom
// [chathistory]: github.com/matzehuels/treereplay/pkg/integrations/chathistory
package integrations
