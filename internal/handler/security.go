package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rentacar/internal/domain/auth"
	"github.com/xenking/rentacar/internal/domain/user"
)

// APIKeyHeader carries the renter's API key.
const APIKeyHeader = "api_key"

var errUnauthorized = errors.New("unauthorized")

type userIDKey struct{}

// WithUserID returns a context carrying the authenticated renter.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext returns the renter set by SecurityHandler.Middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// SecurityHandler authenticates requests via HMAC-SHA256 hashed API keys and
// resolves them to renter accounts.
type SecurityHandler struct {
	apikeys auth.Repository
	users   user.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository, user repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, users user.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		users:   users,
		pepper:  pepper,
	}
}

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper, the form in
// which keys are stored.
func HashAPIKey(pepper []byte, key string) string {
	return hex.EncodeToString(keyMAC(pepper, key))
}

func keyMAC(pepper []byte, key string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// Authenticate resolves an API key to the id of an existing renter.
func (s *SecurityHandler) Authenticate(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, errUnauthorized
	}
	hash := keyMAC(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return 0, errUnauthorized
		}
		return 0, errors.Wrap(err, "find api key")
	}

	// The stored hash must match byte for byte.
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return 0, errUnauthorized
	}

	exists, err := s.users.Exists(ctx, info.UserID)
	if err != nil {
		return 0, errors.Wrap(err, "check user")
	}
	if !exists {
		return 0, errUnauthorized
	}
	return info.UserID, nil
}

// Middleware rejects requests without a valid api_key header with 401 and
// stores the renter id in the request context otherwise.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			if !errors.Is(err, errUnauthorized) {
				zctx.From(r.Context()).Error("Authentication failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Internal", "internal server error")
				return
			}
			writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
			return
		}

		ctx := zctx.With(WithUserID(r.Context(), userID), zap.Int64("user_id", userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
