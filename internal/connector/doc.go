// Package connector is the bot's client for a channel gateway's REST v3
// conversation API.
//
// # Operations
//
// The Client interface covers everything the adapter asks of a gateway:
//
//   - CreateConversation: POST /v3/conversations
//   - SendToConversation: POST /v3/conversations/{id}/activities
//   - ReplyToActivity: POST /v3/conversations/{id}/activities/{activityId}
//   - UpdateActivity: PUT /v3/conversations/{id}/activities/{activityId}
//   - DeleteActivity: DELETE /v3/conversations/{id}/activities/{activityId}
//   - GetConversationMembers, GetActivityMembers, DeleteConversationMember
//   - GetConversations (paged with a continuation token)
//
// # Clients per service URL
//
// Each inbound activity names the gateway that should receive replies in its
// serviceUrl. Factory hands out one Client per distinct service URL and reuses
// it for the lifetime of the adapter.
//
// # Errors
//
// Any non-2xx answer becomes an *RPCError carrying the operation, status code
// and a bounded excerpt of the response body. Calls are never retried.
package connector
