package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"otp_expense_tracker/internal/apperror"
	"otp_expense_tracker/internal/metrics"
	"otp_expense_tracker/internal/model"

	"github.com/gin-gonic/gin"
)

// AuthUserKey is the gin context key holding the authenticated *model.User.
const AuthUserKey = "authUser"

const notAuthorized = "Not authorized to access this route"

type ctxKey struct{}

// IdentityResolver turns a bearer token into the identity it was issued for.
type IdentityResolver interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type gateOptions struct {
	missingStatus  int
	missingMessage string
	logger         *slog.Logger
}

// GateOption customises JWTAuthMiddleware.
type GateOption func(*gateOptions)

// WithMissingIdentity changes the response for a valid token whose identity
// no longer exists. The default is 401.
func WithMissingIdentity(status int, message string) GateOption {
	return func(o *gateOptions) {
		o.missingStatus = status
		o.missingMessage = message
	}
}

// WithGateLogger logs identity lookup failures to logger. Without it they are silent.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(o *gateOptions) { o.logger = logger }
}

// JWTAuthMiddleware requires "Authorization: Bearer <token>", resolves the
// identity and attaches it to the request. It never writes to the store.
func JWTAuthMiddleware(resolver IdentityResolver, opts ...GateOption) gin.HandlerFunc {
	o := gateOptions{missingStatus: http.StatusUnauthorized, missingMessage: notAuthorized}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			reject(c, "no_token", http.StatusUnauthorized, notAuthorized)
			return
		}

		user, err := resolver.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch apperror.KindOf(err) {
			case apperror.KindAuth:
				reject(c, "invalid_token", http.StatusUnauthorized, notAuthorized)
			case apperror.KindNotFound:
				reject(c, "unknown_identity", o.missingStatus, o.missingMessage)
			default:
				if o.logger != nil {
					o.logger.Error("failed to resolve identity", "error", err)
				}
				reject(c, "error", http.StatusInternalServerError, "Error authorizing request")
			}
			return
		}

		c.Set(AuthUserKey, user)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, user))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func reject(c *gin.Context, reason string, status int, message string) {
	metrics.RecordGateRejection(reason)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// CurrentUser returns the identity attached by JWTAuthMiddleware.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(AuthUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

// UserFromContext is CurrentUser for code that only sees a context.Context.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(*model.User)
	return user, ok && user != nil
}
