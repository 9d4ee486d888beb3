package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const ClientKey contextKey = "api_client"

// APIKeyAuth validates the key from "Authorization: Bearer <key>" or "X-API-Key".
// keys maps client name -> key; an empty map disables auth.
func APIKeyAuth(keys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if auth == "" {
					writeJSONError(w, http.StatusUnauthorized, "Missing API key")
					return
				}
				// Support both "Bearer <key>" and "<key>" formats
				apiKey = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}

			// constant-time comparison
			client := ""
			for name, key := range keys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					client = name
					break
				}
			}
			if client == "" {
				writeJSONError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), ClientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeysFromList names keys "key-1", "key-2", ... for a plain list from config
func KeysFromList(list []string) map[string]string {
	out := make(map[string]string, len(list))
	i := 0
	for _, k := range list {
		if k = strings.TrimSpace(k); k == "" {
			continue
		}
		i++
		out["key-"+strconv.Itoa(i)] = k
	}
	return out
}

// GetClientFromContext name of the authenticated API client, if any
func GetClientFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(ClientKey).(string); ok {
		return c
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
