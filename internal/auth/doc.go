// Package auth authenticates inbound channel requests for coven-adapter.
//
// # Verdicts
//
// Every inbound activity carries an Authorization header signed by the channel
// gateway (or by the emulator during local development). An Authenticator turns
// that header plus the activity into an Identity, or fails with an
// *AuthenticationError that wraps ErrAuthentication:
//
//	identity, err := authenticator.Authenticate(ctx, r.Header.Get("Authorization"), act)
//
// No retries are attempted; a failed verdict ends the turn before any bot code runs.
//
// # Token Kinds
//
//   - Channel tokens: RS256 JWTs issued by the channel service. The issuer must
//     match the resolved cloud (public or government), the audience must be the
//     bot's app id, and the serviceurl claim must match the activity.
//
//   - Emulator tokens: issued by the identity platform for the local emulator.
//     Recognized by issuer; the appid (v1) or azp (v2) claim must be the bot's app id.
//
// # Disabled Authentication
//
// When no app id is configured, requests without an Authorization header are
// accepted as anonymous, as are emulator requests carrying one.
//
// # Signing Keys
//
// OpenIDKeyProvider resolves signing keys from an OpenID metadata document and
// its JWKS, caching them and refreshing when an unknown key id shows up.
package auth
