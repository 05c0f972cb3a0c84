package backend

import "context"

// Credentials identify the visitor on calls to the backend: a bearer token
// once logged in, a guest id before that.
type Credentials struct {
	Token   string
	GuestID string
}

type credentialsKey struct{}

// WithCredentials attaches visitor credentials to ctx
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFrom returns the credentials attached to ctx
func CredentialsFrom(ctx context.Context) Credentials {
	c, _ := ctx.Value(credentialsKey{}).(Credentials)
	return c
}
