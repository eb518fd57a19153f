package auth

import "context"

// Demo account accepted by DemoAuthenticator
const (
	DemoEmail    = "admin@test.com"
	DemoPassword = "123456789"
	DemoName     = "Admin User Test"
	DemoToken    = "mock-jwt-token-12345"
)

// DemoAuthenticator accepts the single demo account without any network
// access. Useful when the auth API is not running.
type DemoAuthenticator struct{}

func (DemoAuthenticator) Authenticate(_ context.Context, email, password string) Result {
	if email == DemoEmail && password == DemoPassword {
		return Result{
			Success: true,
			User: &User{
				ID:    "1",
				Email: email,
				Name:  DemoName,
				Token: DemoToken,
			},
		}
	}
	return Failure(MsgInvalidCredentials)
}
