package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"github.com/silentsos/silentsos/internal/config"
	"github.com/silentsos/silentsos/internal/logging"
)

// SessionUserKey is the gothic session key holding the signed-in user id.
const SessionUserKey = "userId"

// InitializeGoth installs the cookie session store and, when credentials are
// configured, the Google provider for the server-side OAuth flow.
func InitializeGoth(cfg config.GoogleConfig, sessionSecret string, secure bool) {
	log := logging.For("auth")

	store := sessions.NewCookieStore(
		createSessionKey(sessionSecret),
		createSessionKey(sessionSecret+"encryption"),
	)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store

	if !cfg.WebFlowEnabled() {
		log.Info("Google web sign-in disabled, client credentials not configured")
		return
	}

	provider := google.New(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL, "email", "profile")
	provider.SetAccessType("offline")
	goth.UseProviders(provider)

	log.Info("Google web sign-in enabled", "callback_url", cfg.CallbackURL)
}

// createSessionKey derives a 32 byte key from seed, the size AES-256 expects.
func createSessionKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}
