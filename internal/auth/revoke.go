package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// GoogleRevokeURL is Google's token revocation endpoint.
const GoogleRevokeURL = "https://oauth2.googleapis.com/revoke"

// RevokeGoogleToken asks Google to revoke token. The refresh token is preferred
// since revoking it also invalidates the access tokens minted from it.
func RevokeGoogleToken(ctx context.Context, client *http.Client, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("no token to revoke")
	}

	value := token.RefreshToken
	if value == "" {
		value = token.AccessToken
	}

	if value == "" {
		return fmt.Errorf("no token to revoke")
	}

	if client == nil {
		client = http.DefaultClient
	}

	form := url.Values{"token": {value}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, GoogleRevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke request returned status %d", resp.StatusCode)
	}

	return nil
}
