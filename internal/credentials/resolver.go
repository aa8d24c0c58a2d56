package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// Stored is one sealed credential row. Created and rotated by the
// credential-management feature; read-only to this service.
type Stored struct {
	ID           int64     `db:"id"`
	AccountID    int64     `db:"account_id"`
	Jurisdiction string    `db:"jurisdiction"`
	Instance     string    `db:"instance"`
	SealedSecret []byte    `db:"sealed_secret"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
}

// secretPayload is the sealed JSON shape.
type secretPayload struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	OTPSeed  string `json:"otp_seed,omitempty"`
}

// Decrypted holds an unsealed credential for the duration of one capture
// run. Callers must Close it on every exit path; Close zeroes the secret
// material.
type Decrypted struct {
	CredentialID int64
	Login        string
	password     []byte
	otpSeed      []byte
	closed       bool
}

// Password returns the secret password bytes. Valid until Close.
func (d *Decrypted) Password() []byte {
	if d.closed {
		return nil
	}
	return d.password
}

// OTPSeed returns the one-time-code seed, or nil when the credential has
// none. Valid until Close.
func (d *Decrypted) OTPSeed() []byte {
	if d.closed {
		return nil
	}
	return d.otpSeed
}

// Close zeroes the decrypted secret material. Safe to call twice.
func (d *Decrypted) Close() {
	if d.closed {
		return
	}
	zero(d.password)
	zero(d.otpSeed)
	d.closed = true
}

// Store retrieves sealed credentials.
type Store interface {
	GetActive(ctx context.Context, accountID int64, jurisdiction string, instance domain.Instance) (*Stored, error)
}

// Resolver resolves and unseals credentials on behalf of capture runs.
type Resolver struct {
	store Store
	key   []byte
}

// NewResolver creates a resolver with the given backing store and
// hex-encoded sealing key.
func NewResolver(store Store, hexKey string) (*Resolver, error) {
	key, err := ParseKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Resolver{store: store, key: key}, nil
}

// Resolve returns the decrypted credential for the triple, or
// domain.ErrCredentialNotFound when no active credential matches. The
// caller owns the returned value and must Close it.
func (r *Resolver) Resolve(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
) (*Decrypted, error) {
	stored, err := r.store.GetActive(ctx, accountID, jurisdiction, instance)
	if err != nil {
		return nil, err
	}

	plaintext, err := Unseal(r.key, stored.SealedSecret)
	if err != nil {
		return nil, fmt.Errorf("credential %d: %w", stored.ID, err)
	}
	defer zero(plaintext)

	var payload secretPayload
	if err = json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("credential %d has malformed secret: %w", stored.ID, err)
	}

	return &Decrypted{
		CredentialID: stored.ID,
		Login:        payload.Login,
		password:     []byte(payload.Password),
		otpSeed:      []byte(payload.OTPSeed),
	}, nil
}
