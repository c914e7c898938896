package remote

import "context"

type ctxKey struct{}

var ctxKeyToken = ctxKey{}

// WithAccessToken scopes the caller's access token to ctx.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyToken, token)
}

func AccessTokenFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyToken); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
