package api

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/solatis/cardwright/internal/core/auth"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/platform/logger"
	"github.com/solatis/cardwright/internal/types"
	"github.com/solatis/cardwright/internal/validate"
)

/*
 * Remote validation.
 *
 * ValidatorService exposes any validate.Validator (normally the local
 * evaluator) as /cardwright.validator.v1.Validator/Validate. RemoteValidator
 * is the matching client and itself implements validate.Validator, so a
 * deployment switches between local and remote evaluation by configuration
 * alone. The flattened expression travels with its factors, parameters and
 * bindings inlined; the serving side needs no catalog.
 */

// ValidatorService implements ValidatorServer over a validate.Validator.
type ValidatorService struct {
	validator validate.Validator
	logger    *logger.Logger
}

var _ ValidatorServer = (*ValidatorService)(nil)

// NewValidatorService creates the serving side of remote validation.
func NewValidatorService(v validate.Validator, l *logger.Logger) *ValidatorService {
	if l == nil {
		l = logger.Nop()
	}
	return &ValidatorService{validator: v, logger: l}
}

// Validate evaluates a flattened expression shipped by a RemoteValidator.
func (s *ValidatorService) Validate(ctx context.Context, req *ValidatorRequest) (*ValidatorResponse, error) {
	flat, bindings, err := flattenedFromRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}
	verdict, err := s.validator.Validate(ctx, flat, bindings)
	if err != nil {
		s.logger.Debug("remote validation failed", "expression", req.Expression, "error", err)
		return nil, toStatus(err)
	}
	return &ValidatorResponse{Passed: verdict.Passed, Message: verdict.Message}, nil
}

// RemoteValidator delegates validation to a validator service.
type RemoteValidator struct {
	cc      grpc.ClientConnInterface
	timeout time.Duration
}

var _ validate.Validator = (*RemoteValidator)(nil)

// NewRemoteValidator creates a validator over cc. A positive timeout bounds
// every call on top of the caller's deadline.
func NewRemoteValidator(cc grpc.ClientConnInterface, timeout time.Duration) *RemoteValidator {
	return &RemoteValidator{cc: cc, timeout: timeout}
}

// DialValidator connects to a validator service at addr. A non-empty token is
// sent as a bearer token on every call.
func DialValidator(addr, token string) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(auth.TokenCredentials{Token: token}))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial validator %s: %w", addr, err)
	}
	return conn, nil
}

// Validate implements validate.Validator.
func (v *RemoteValidator) Validate(ctx context.Context, flat expr.Flattened, bindings types.Bindings) (types.Verdict, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	resp, err := invoke[ValidatorResponse](ctx, v.cc, ValidatorServiceName, "Validate", validatorRequest(flat, bindings), nil)
	if err != nil {
		return types.Verdict{}, fmt.Errorf("remote validator: %w", err)
	}
	return types.Verdict{Passed: resp.Passed, Message: resp.Message}, nil
}
