// Package auth provides shared-token authentication for cardwright gRPC services.
package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Metadata key carrying "Bearer <token>".
const authorizationKey = "authorization"

// healthPrefix is left unauthenticated so orchestrators can probe liveness.
const healthPrefix = "/grpc.health.v1.Health/"

// Authenticator checks bearer tokens against one configured token.
// Holds only the token digest, compared in constant time.
type Authenticator struct {
	digest []byte
}

// NewAuthenticator creates an authenticator for token.
func NewAuthenticator(token string) *Authenticator {
	return &Authenticator{digest: Digest(token)}
}

// Authenticate validates the authorization metadata value.
func (a *Authenticator) Authenticate(header string) error {
	token, err := ParseBearer(header)
	if err != nil {
		return err
	}
	if !VerifyDigest(a.digest, Digest(token)) {
		return ErrInvalidToken
	}
	return nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		values := md.Get(authorizationKey)
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingToken.Error())
		}

		if err := a.Authenticate(values[0]); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}

// TokenCredentials attaches a bearer token to every outgoing call.
// Implements credentials.PerRPCCredentials.
type TokenCredentials struct {
	Token string
	// Secure requires a TLS transport before the token is sent.
	Secure bool
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c TokenCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{authorizationKey: FormatBearer(c.Token)}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c TokenCredentials) RequireTransportSecurity() bool { return c.Secure }
