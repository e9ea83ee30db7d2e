package replies

import (
	"errors"
	"fmt"

	"github.com/mobilephlebotomy/leadrouter/internal/audit"
)

var (
	ErrProviderNotFound = errors.New("replies: provider not found")
	ErrNoRecentLead     = errors.New("replies: no recent lead found")
	ErrUnknownKeyword   = errors.New("replies: no recognized keyword")
)

// Kind classifies a reply failure so each channel can pick its own response.
type Kind int

const (
	KindInternal Kind = iota
	KindProviderNotFound
	KindNoRecentLead
	KindUnknownKeyword
)

func (k Kind) String() string {
	switch k {
	case KindProviderNotFound:
		return audit.ResultProviderNotFound
	case KindNoRecentLead:
		return audit.ResultNoRecentLead
	case KindUnknownKeyword:
		return audit.ResultUnknownKeyword
	default:
		return audit.ResultError
	}
}

// ReplyError is returned by Processor.Process for every failed reply.
type ReplyError struct {
	Kind Kind
	Err  error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ReplyError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err. Errors that are not a
// *ReplyError are internal.
func KindOf(err error) Kind {
	var re *ReplyError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}
