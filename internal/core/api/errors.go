package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/cardwright/internal/rules"
	"github.com/solatis/cardwright/internal/types"
)

// errBadRequest marks malformed request fields.
var errBadRequest = errors.New("bad request")

// Error mapping to gRPC status codes:
//   - expression and request errors     -> INVALID_ARGUMENT
//   - stale rule references             -> FAILED_PRECONDITION
//   - missing entities                  -> NOT_FOUND
//   - rule version conflicts            -> ABORTED (client reloads and retries)
//   - resolver timeouts, deadlines      -> DEADLINE_EXCEEDED
//   - remote validator status           -> passed through
//   - everything else (storage)         -> UNAVAILABLE
var invalidArgument = []error{
	errBadRequest,
	types.ErrGrammarViolation,
	types.ErrUnresolvedOperand,
	types.ErrIncompleteBinding,
	types.ErrEmptyExpression,
	types.ErrAmbiguousOperand,
	types.ErrExpansionTooLarge,
	types.ErrCoercionFailed,
	types.ErrInvalidFactor,
	types.ErrDuplicateParameter,
	rules.ErrInvalidPayload,
}

// toStatus converts a domain error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	switch {
	case errors.Is(err, types.ErrStaleVersionReference):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, types.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, types.ErrResolverTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	if s, ok := status.FromError(err); ok {
		return s.Err()
	}
	return status.Error(codes.Unavailable, err.Error())
}
