package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrPreload             = errors.New("preload failed")
	ErrSignFail            = errors.New("sign failed")
	ErrBroadcast           = errors.New("broadcast rejected")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientFee     = errors.New("insufficient fee balance")
	ErrNotFound            = errors.New("not found")
)

// Error carries the kind of a lifecycle failure together with where it
// happened. Msg is the text safe to show to a user.
type Error struct {
	Kind  error
	Chain Chain
	Op    string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Chain != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Chain, e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind. An err that already carries the kind is
// returned unchanged.
func NewError(kind error, chain Chain, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &Error{Kind: kind, Chain: chain, Op: op, Err: err}
}

// SignFailf builds a SignFail error for a malformed intent or context.
func SignFailf(chain Chain, format string, args ...any) error {
	return &Error{Kind: ErrSignFail, Chain: chain, Op: "sign", Msg: fmt.Sprintf(format, args...)}
}

// PreloadErrorf builds a PreloadError for unresolvable on-chain state.
func PreloadErrorf(chain Chain, format string, args ...any) error {
	return &Error{Kind: ErrPreload, Chain: chain, Op: "preload", Msg: fmt.Sprintf(format, args...)}
}

// BroadcastRejected builds a BroadcastError carrying the node's message.
func BroadcastRejected(chain Chain, msg string) error {
	return &Error{Kind: ErrBroadcast, Chain: chain, Op: "broadcast", Msg: msg}
}

// Unavailable marks err as a transient node outage.
func Unavailable(chain Chain, op string, err error) error {
	return NewError(ErrServiceUnavailable, chain, op, err)
}

// Unsupported is returned by adapters for variants the chain cannot express.
// Preloaders pass ErrPreload, signers ErrSignFail.
func Unsupported(kind error, chain Chain, p ConfirmParams) error {
	op := "preload"
	if kind == ErrSignFail {
		op = "sign"
	}
	return &Error{Kind: kind, Chain: chain, Op: op, Msg: fmt.Sprintf("%s is not supported", p.Kind())}
}
