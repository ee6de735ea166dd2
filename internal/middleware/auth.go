package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
	"github.com/GregMSThompson/household-ledger/internal/response"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

// IdentityVerifier authenticates a request and returns the caller.
type IdentityVerifier interface {
	Verify(r *http.Request) (models.Identity, error)
}

type Middleware struct {
	Verifier        IdentityVerifier
	ResponseHandler response.ResponseHandler
}

func NewMiddleware(verifier IdentityVerifier, rh response.ResponseHandler) *Middleware {
	return &Middleware{Verifier: verifier, ResponseHandler: rh}
}

// context key
type contextKey string

const (
	UIDKey      contextKey = "uid"
	IdentityKey contextKey = "identity"
)

// Auth rejects unauthenticated requests and stores the caller's identity
// and uid in the context.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Verifier.Verify(r)
		if err != nil {
			m.ResponseHandler.HandleError(w, r, err)
			return
		}

		_, ctx := logger.With(r.Context(), "uid", id.UID)
		ctx = context.WithValue(ctx, IdentityKey, id)
		ctx = context.WithValue(ctx, UIDKey, id.UID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Helper to extract UID
func UID(ctx context.Context) string {
	uid, _ := ctx.Value(UIDKey).(string)
	return uid
}

// Identity returns the authenticated caller. When only a uid is present
// the identity carries just that.
func Identity(ctx context.Context) models.Identity {
	if id, ok := ctx.Value(IdentityKey).(models.Identity); ok {
		return id
	}
	return models.Identity{UID: UID(ctx)}
}

type FirebaseVerifier struct {
	AuthClient *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{AuthClient: client}
}

func (v *FirebaseVerifier) Verify(r *http.Request) (models.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return models.Identity{}, errs.NewUnauthenticatedError("missing Authorization header")
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return models.Identity{}, errs.NewUnauthenticatedError("invalid Authorization header")
	}

	// Verify ID Token
	token, err := v.AuthClient.VerifyIDToken(r.Context(), parts[1])
	if err != nil {
		return models.Identity{}, errs.NewUnauthenticatedError("invalid or expired token")
	}

	id := models.Identity{UID: token.UID}
	if name, ok := token.Claims["name"].(string); ok {
		id.FirstName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		id.Avatar = picture
	}
	return id, nil
}
