package auth

import (
	"context"

	"github.com/mmynk/tontine/internal/models"
)

// Registration holds the fields needed to create an account.
type Registration struct {
	Email     string
	FirstName string
	LastName  string
	// Credential format depends on the implementation (password, OAuth token, etc.)
	Credential string
}

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password, passkeys, OAuth, etc.)
// without changing the service layer code.
type Authenticator interface {
	// Register creates a new user account.
	Register(ctx context.Context, reg Registration) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
