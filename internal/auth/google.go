package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is the subset of a verified Google ID token the service uses.
type GoogleIdentity struct {
	Subject string
	Email   string
	Picture string
}

// GoogleVerifier checks a Google ID token issued to the configured client.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*GoogleIdentity, error)
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// IDTokenVerifier verifies tokens against Google's published keys.
type IDTokenVerifier struct {
	clientID string
	validate validateFunc
}

func NewIDTokenVerifier(clientID string) *IDTokenVerifier {
	return &IDTokenVerifier{clientID: clientID, validate: idtoken.Validate}
}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	if token == "" {
		return nil, errors.New("empty id token")
	}

	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, err
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, errors.New("id token carries no email")
	}

	picture, _ := payload.Claims["picture"].(string)

	return &GoogleIdentity{
		Subject: payload.Subject,
		Email:   email,
		Picture: picture,
	}, nil
}
