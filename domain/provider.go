package domain

import "context"

// Identity holds the provider-side account fields behind a credential.
type Identity struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Phone     string `json:"phone"`
}

// ProviderRejection is an error the provider itself returned (invalid
// phone, wrong or expired code, revoked credential), as opposed to a
// transport failure reaching the provider.
type ProviderRejection struct {
	Reason string
}

func (e *ProviderRejection) Error() string {
	return e.Reason
}

// ProviderConn is a single live connection to the messaging provider.
// Connections are single-purpose: one per login attempt or profile
// lookup. Close must be safe on every exit path, success or failure.
type ProviderConn interface {
	// RequestCode asks the provider to send a one-time code to phone and
	// returns the challenge handle needed to complete the sign-in.
	RequestCode(ctx context.Context, phone string) (string, error)
	// CompleteCode submits the code against the challenge handle and, on
	// success, returns the durable session credential.
	CompleteCode(ctx context.Context, phone, handle, code string) (string, error)
	// FetchIdentity resolves the account the connection is authorized as.
	FetchIdentity(ctx context.Context) (*Identity, error)
	Close(ctx context.Context) error
}

// Provider dials the messaging provider, either anonymously for the login
// flow or resuming a stored credential for identity lookups.
type Provider interface {
	Connect(ctx context.Context) (ProviderConn, error)
	ConnectWithCredential(ctx context.Context, credential string) (ProviderConn, error)
}
