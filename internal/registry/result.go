// Package registry is the console-facing facade over the catalog. Every
// operation returns a Result instead of an error so callers can render
// failures without inspecting error types.
package registry

import (
	"errors"

	"github.com/yourorg/calibr8/internal/catalogclient"
)

// Kind classifies a failed Result.
type Kind string

const (
	// KindBackend is a non-2xx answer; Error holds the backend's detail verbatim.
	KindBackend Kind = "backend"
	// KindTransport is a request that never got an answer.
	KindTransport Kind = "transport"
	// KindPrecondition is rejected locally before any request is sent.
	KindPrecondition Kind = "precondition"
	// KindEvaluation is a formula the backend could not evaluate.
	KindEvaluation Kind = "evaluation"
)

// TransportMessage is shown for every transport failure.
const TransportMessage = "Network error: unable to reach the catalog"

// DecodeMessage is shown when the catalog answered with an unreadable body.
const DecodeMessage = "Invalid response from the catalog"

// Empty is the payload of operations that return nothing.
type Empty struct{}

type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
	// Status is the HTTP status of a backend failure.
	Status int `json:"status,omitempty"`
}

func OK[T any](v T) Result[T] {
	return Result[T]{Success: true, Data: v}
}

func Fail[T any](kind Kind, msg string) Result[T] {
	return Result[T]{Kind: kind, Error: msg}
}

// fromError converts a catalog client error into a failed Result.
func fromError[T any](err error) Result[T] {
	var apiErr *catalogclient.APIError
	var transportErr *catalogclient.TransportError
	var decodeErr *catalogclient.DecodeError
	switch {
	case errors.As(err, &apiErr):
		r := Fail[T](KindBackend, apiErr.Detail)
		r.Status = apiErr.Status
		return r
	case errors.As(err, &decodeErr):
		r := Fail[T](KindBackend, DecodeMessage)
		r.Status = decodeErr.Status
		return r
	case errors.As(err, &transportErr):
		return Fail[T](KindTransport, TransportMessage)
	default:
		return Fail[T](KindBackend, err.Error())
	}
}

func precondition[T any](msg string) Result[T] {
	return Fail[T](KindPrecondition, msg)
}
