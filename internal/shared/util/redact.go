package util

// RedactToken shortens a verification token for log output. Tokens are
// credentials; only a prefix ever reaches the logs.
func RedactToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "…"
}
