// Package api exposes the HTTP interface for the insight service.
//
// The improve and recommend endpoints drive the orchestration pipeline;
// the chats endpoints expose paginated conversation history. Owner
// identity arrives pre-authenticated from the upstream auth layer and
// is trusted as given.
package api
