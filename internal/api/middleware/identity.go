package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cheertaboi/jewelry-storefront/internal/backend"
	"github.com/Cheertaboi/jewelry-storefront/internal/cache"
	"github.com/Cheertaboi/jewelry-storefront/internal/logger"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

// GuestCookie names the cookie that identifies anonymous visitors
const GuestCookie = "guest_id"

const guestCookieMaxAge = 30 * 24 * time.Hour

// Visitor is who is making the request: a logged-in user, a guest, or both
// when a guest cookie is still around after login
type Visitor struct {
	UserID  string
	GuestID string
	Token   string
}

// Authenticated reports whether the request carried a usable bearer token
func (v Visitor) Authenticated() bool {
	return v.UserID != ""
}

// SessionKey is the session-store key for the visitor's state
func (v Visitor) SessionKey() string {
	if v.UserID != "" {
		return "user:" + v.UserID
	}
	return "guest:" + v.GuestID
}

type visitorKey struct{}

// VisitorFrom returns the visitor resolved by Identity
func VisitorFrom(ctx context.Context) Visitor {
	v, _ := ctx.Value(visitorKey{}).(Visitor)
	return v
}

// WithVisitor attaches v to ctx
func WithVisitor(ctx context.Context, v Visitor) context.Context {
	return context.WithValue(ctx, visitorKey{}, v)
}

// UserLookup resolves the user a bearer token belongs to
type UserLookup interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

type IdentityConfig struct {
	// JWTSecret verifies HS256 tokens locally. When empty, a token's subject
	// is only trusted after Users confirms it; without Users every token is
	// ignored.
	JWTSecret    string
	Users        UserLookup
	CookieSecure bool
}

const confirmedTTL = time.Minute

var (
	errNoSubject       = errors.New("token has no subject")
	errUnconfirmed     = errors.New("token cannot be confirmed without a jwt secret or user lookup")
	errSubjectMismatch = errors.New("token subject does not match the backend user")
)

// tokenResolver maps a bearer token to a user id
type tokenResolver struct {
	parser    *jwt.Parser
	secret    string
	users     UserLookup
	confirmed *cache.TTLCache[string, string]
	lookups   atomic.Uint64
}

func (tr *tokenResolver) userID(ctx context.Context, token string) (string, error) {
	claimed, err := subject(tr.parser, tr.secret, token)
	if err != nil || tr.secret != "" {
		return claimed, err
	}
	if tr.users == nil {
		return "", errUnconfirmed
	}
	if id, ok := tr.confirmed.Get(token); ok {
		return id, nil
	}

	u, err := tr.users.CurrentUser(backend.WithCredentials(ctx, backend.Credentials{Token: token}))
	if err != nil {
		return "", fmt.Errorf("confirm token: %w", err)
	}
	if u.ID != claimed {
		return "", errSubjectMismatch
	}
	tr.confirmed.Set(token, claimed)
	if tr.lookups.Add(1)%256 == 0 {
		tr.confirmed.Purge()
	}
	return claimed, nil
}

// Identity resolves the visitor from a bearer token or the guest cookie,
// minting a guest id on first visit. An invalid, expired or unconfirmed
// token leaves the visitor a guest.
func Identity(cfg IdentityConfig, base *zap.Logger) func(http.Handler) http.Handler {
	tr := &tokenResolver{
		parser:    jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired()),
		secret:    cfg.JWTSecret,
		users:     cfg.Users,
		confirmed: cache.NewTTLCache[string, string](confirmedTTL),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var v Visitor

			if token := bearerToken(r); token != "" {
				userID, err := tr.userID(r.Context(), token)
				if err != nil {
					logger.FromContext(r.Context(), base).Debug("ignoring bearer token", zap.Error(err))
				} else {
					v.UserID, v.Token = userID, token
				}
			}

			if c, err := r.Cookie(GuestCookie); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					v.GuestID = id.String()
				}
			}
			if v.GuestID == "" {
				v.GuestID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     GuestCookie,
					Value:    v.GuestID,
					Path:     "/",
					MaxAge:   int(guestCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithVisitor(r.Context(), v)
			ctx = backend.WithCredentials(ctx, backend.Credentials{Token: v.Token, GuestID: v.GuestID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

type claims struct {
	UserID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

func subject(parser *jwt.Parser, secret, token string) (string, error) {
	var c claims
	if secret == "" {
		if _, _, err := parser.ParseUnverified(token, &c); err != nil {
			return "", err
		}
		exp, err := c.GetExpirationTime()
		if err != nil || exp == nil || !exp.After(time.Now()) {
			return "", jwt.ErrTokenExpired
		}
	} else {
		_, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			return "", err
		}
	}

	switch {
	case c.Subject != "":
		return c.Subject, nil
	case c.UserID != "":
		return c.UserID, nil
	default:
		return "", errNoSubject
	}
}
