package grpcapi

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/linkgate/linkgate/internal/model"
)

// Trailer keys carrying the domain error.
const (
	TrailerErrorKind   = "error-kind"
	TrailerErrorCode   = "error-code"
	TrailerErrorFields = "error-fields"
)

// codeFor maps an error kind to its gRPC status code.
func codeFor(kind model.ErrorKind) codes.Code {
	switch kind {
	case model.KindValidation:
		return codes.InvalidArgument
	case model.KindConflict:
		return codes.AlreadyExists
	case model.KindNotFound:
		return codes.NotFound
	case model.KindExpired:
		return codes.FailedPrecondition
	case model.KindForbidden:
		return codes.PermissionDenied
	case model.KindRateLimited:
		return codes.ResourceExhausted
	case model.KindInternal:
		return codes.Internal
	}
	return codes.Internal
}

// kindFor maps a gRPC code back to a kind when no trailer is present.
func kindFor(code codes.Code) model.ErrorKind {
	switch code {
	case codes.InvalidArgument, codes.OutOfRange:
		return model.KindValidation
	case codes.AlreadyExists:
		return model.KindConflict
	case codes.NotFound:
		return model.KindNotFound
	case codes.FailedPrecondition:
		return model.KindExpired
	case codes.PermissionDenied, codes.Unauthenticated:
		return model.KindForbidden
	case codes.ResourceExhausted:
		return model.KindRateLimited
	}
	return model.KindInternal
}

// toStatus converts a domain error into a status error and attaches the
// error trailer to ctx.
func toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	e := model.AsError(err)
	md := metadata.Pairs(
		TrailerErrorKind, e.Kind.String(),
		TrailerErrorCode, e.Code,
	)
	if len(e.Fields) > 0 {
		if raw, mErr := json.Marshal(e.Fields); mErr == nil {
			md.Append(TrailerErrorFields, string(raw))
		}
	}
	_ = grpc.SetTrailer(ctx, md)
	return status.Error(codeFor(e.Kind), e.Message)
}

// FromError rebuilds a domain error from a call error and its trailer.
// Transport failures that never reached the server become internal errors.
func FromError(err error, trailer metadata.MD) *model.Error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return model.ErrInternal.Wrap(err)
	}

	kind := kindFor(st.Code())
	if v := trailer.Get(TrailerErrorKind); len(v) > 0 {
		kind = model.ParseErrorKind(v[0])
	}
	code := st.Code().String()
	if v := trailer.Get(TrailerErrorCode); len(v) > 0 {
		code = v[0]
	}

	out := &model.Error{Kind: kind, Code: code, Message: st.Message(), Err: err}
	if v := trailer.Get(TrailerErrorFields); len(v) > 0 {
		_ = json.Unmarshal([]byte(v[0]), &out.Fields)
	}
	return out
}
