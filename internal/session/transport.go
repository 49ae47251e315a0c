package session

import (
	"context"

	"github.com/confab-dev/confab-go/internal/models"
)

// Credentials authenticate a connection attempt. Both fields must be
// non-empty before the manager will touch the network.
type Credentials struct {
	Token    string
	Identity string
}

// Valid reports whether the credentials are complete.
func (c Credentials) Valid() bool {
	return c.Token != "" && c.Identity != ""
}

// CredentialSource supplies credentials at connect time. Implementations
// may read config, a keychain, or a fixture in tests.
type CredentialSource interface {
	Credentials() (Credentials, error)
}

// StaticCredentials is a CredentialSource returning fixed values.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials() (Credentials, error) {
	return Credentials(s), nil
}

// Transport is one live connection to the event source. Receive blocks
// until the next event arrives or the connection fails; after Close it
// returns an error promptly.
type Transport interface {
	Join(roomID string) error
	Leave(roomID string) error
	Send(roomID, body string) error
	Receive() (*models.Event, error)
	Close() error
}

// TransportFactory dials a new connection. An *AuthError return means the
// server rejected the credentials and the attempt must not be retried.
type TransportFactory func(ctx context.Context, creds Credentials) (Transport, error)
