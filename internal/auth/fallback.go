package auth

import (
	"context"

	"github.com/obentoo/geodash/internal/common/logger"
)

// FallbackAuthenticator asks Primary first and consults Fallback only when
// Primary could not be reached. Rejections from Primary are final.
type FallbackAuthenticator struct {
	Primary  Authenticator
	Fallback Authenticator
}

func (f *FallbackAuthenticator) Authenticate(ctx context.Context, email, password string) Result {
	res := f.Primary.Authenticate(ctx, email, password)
	if !res.Unreachable || f.Fallback == nil {
		return res
	}
	logger.Warn("auth API unreachable, using demo fallback")
	return f.Fallback.Authenticate(ctx, email, password)
}
