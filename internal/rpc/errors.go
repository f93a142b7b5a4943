package rpc

import (
	"errors"

	"github.com/matheus3301/crewchat/internal/message"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Status converts a classified error into a gRPC status error.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isDomain(err) {
		return err
	}
	return status.Error(Code(message.KindOf(err)), err.Error())
}

func isDomain(err error) bool {
	var e *message.Error
	return errors.As(err, &e)
}

// Code maps an error kind to a gRPC code.
func Code(kind message.ErrorKind) codes.Code {
	switch kind {
	case message.KindValidation:
		return codes.InvalidArgument
	case message.KindNotAuthorized:
		return codes.PermissionDenied
	case message.KindNotFound:
		return codes.NotFound
	case message.KindTransient:
		return codes.Unavailable
	}
	return codes.Unknown
}

// KindOf maps a gRPC code back to an error kind.
func KindOf(c codes.Code) message.ErrorKind {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return message.KindValidation
	case codes.PermissionDenied, codes.Unauthenticated:
		return message.KindNotAuthorized
	case codes.NotFound:
		return message.KindNotFound
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted, codes.Aborted:
		return message.KindTransient
	}
	return message.KindUnknown
}

// FromStatus converts an error returned by a gRPC call into a classified
// error.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	return message.E(KindOf(st.Code()), "", errors.New(st.Message()))
}
