package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// IdentityToken holds the verified token data used by downstream middleware.
type IdentityToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw ID token string and returns token data.
// Authentication policy lives outside the core; this is the narrow interface
// the core consumes.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*IdentityToken, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier creates a TokenVerifier backed by the Firebase Admin SDK.
// If credentialsFile is empty, application-default credentials are used.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*IdentityToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &IdentityToken{UID: token.UID, Claims: token.Claims}, nil
}
