package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// RequestData carries the authenticated identity for the lifetime of a
// request. Handlers and services read it instead of re-parsing tokens.
type RequestData struct {
	TokenString  string
	RefreshToken string
	UserID       *uuid.UUID
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, contextKey{}, data)
}

func GetRequestData(ctx context.Context) *RequestData {
	if data, ok := ctx.Value(contextKey{}).(*RequestData); ok {
		return data
	}
	return nil
}
