// ABOUTME: Authorization header parsing shared by the request authenticator
// ABOUTME: Extracts bearer tokens and classifies them by issuer without verifying

package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// emulatorIssuers are the issuers used by tokens minted for the emulator.
var emulatorIssuers = []string{
	"https://sts.windows.net/d6d49420-f39b-4df7-a1dc-d59a935871db/",
	"https://login.microsoftonline.com/d6d49420-f39b-4df7-a1dc-d59a935871db/v2.0",
	"https://sts.windows.net/f8cdef31-a31e-4b4a-93e4-5f571e91255a/",
	"https://login.microsoftonline.com/f8cdef31-a31e-4b4a-93e4-5f571e91255a/v2.0",
	"https://sts.windows.net/cab8a31a-1906-4287-a0d8-4eef66b95f6e/",
	"https://login.microsoftonline.us/cab8a31a-1906-4287-a0d8-4eef66b95f6e/v2.0",
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// unverifiedIssuer reads the iss claim without checking the signature. It is
// only used to route a token to the right validator.
func unverifiedIssuer(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	iss, _ := claims["iss"].(string)
	return iss
}

// isEmulatorIssuer reports whether iss belongs to the emulator, including the
// configured tenant's own v1 and v2 issuers.
func isEmulatorIssuer(iss, tenantID string) bool {
	if iss == "" {
		return false
	}
	for _, known := range emulatorIssuers {
		if iss == known {
			return true
		}
	}
	if tenantID != "" {
		return iss == "https://sts.windows.net/"+tenantID+"/" ||
			iss == "https://login.microsoftonline.com/"+tenantID+"/v2.0"
	}
	return false
}
