package domain

import (
	"context"
	"strings"
)

// Principal はサインイン済みのユーザーを表します。
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Valid は ID が空でないかを返します。
func (p Principal) Valid() bool {
	return strings.TrimSpace(p.ID) != ""
}

type principalKey struct{}

// WithPrincipal は Principal を context に格納します。
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext は context から Principal を取り出します。
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || !p.Valid() {
		return Principal{}, false
	}
	return p, true
}
