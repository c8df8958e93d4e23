package core

import "context"

type contextKey string

const (
	ctxKeyRequester contextKey = "import_requester"
	ctxKeyUserAgent contextKey = "import_ua"
)

// ContextWithRequester records who triggered the run (an IP address, or
// "cli" for command-line runs). It is copied into the run report.
func ContextWithRequester(ctx context.Context, who string) context.Context {
	return context.WithValue(ctx, ctxKeyRequester, who)
}

// ContextWithUserAgent adds the client User-Agent to the run report.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// RequesterFromContext extracts the requester from context.
func RequesterFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequester).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext extracts the User-Agent from context.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
