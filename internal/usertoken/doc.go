// Package usertoken is the bot's client for the token-exchange service that
// holds users' OAuth tokens for configured connections.
//
// Endpoints used:
//
//   - GET    /api/usertoken/GetToken
//   - DELETE /api/usertoken/SignOut
//   - GET    /api/usertoken/GetTokenStatus
//   - POST   /api/usertoken/GetAadTokens
//   - POST   /api/usertoken/emulateOAuthCards
//   - GET    /api/botsignin/GetSignInUrl
//   - GET    /api/botsignin/GetSignInResource
//
// A 404 from GetToken means the user is not signed in and is reported as a
// nil token with a nil error. Every other non-2xx answer is an *RPCError.
package usertoken
