package types

const ContextUserKey = "user"

// AllowedOrigins lists the browser origins accepted for CORS and websocket
// upgrades. The server replaces it with the configured list at startup.
var AllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// IsAllowedOrigin reports whether origin is one of AllowedOrigins.
func IsAllowedOrigin(origin string) bool {
	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
