package errors

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code uint16
	Name string
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

// Is reports whether err carries the given code, whatever its metadata type.
func Is[MT any](err error, code Code[MT]) bool {
	coded, ok := err.(Error)
	if !ok {
		return false
	}
	return coded.Code() == code.Code
}

type PacketMetadata struct {
	PacketId string `json:"packet_id"`
}

type ClaimMetadata struct {
	PacketId string `json:"packet_id"`
	Claimant string `json:"claimant"`
}

type EscrowMetadata struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  uint64 `json:"amount"`
}

type ExpiryMetadata struct {
	PacketId  string `json:"packet_id"`
	ExpiresAt int64  `json:"expires_at"`
	Now       int64  `json:"now"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR"}
var INVALID_REQUEST = Code[map[string]any]{1, "INVALID_REQUEST"}
var INSUFFICIENT_FUNDS = Code[EscrowMetadata]{2, "INSUFFICIENT_FUNDS"}
var PACKET_NOT_FOUND = Code[PacketMetadata]{3, "PACKET_NOT_FOUND"}
var PACKET_EXPIRED = Code[ExpiryMetadata]{4, "PACKET_EXPIRED"}
var PACKET_EMPTY = Code[PacketMetadata]{5, "PACKET_EMPTY"}
var ALREADY_CLAIMED = Code[ClaimMetadata]{6, "ALREADY_CLAIMED"}
var NOT_ELIGIBLE = Code[ClaimMetadata]{7, "NOT_ELIGIBLE"}
var PACKET_NOT_EXPIRED = Code[ExpiryMetadata]{8, "PACKET_NOT_EXPIRED"}
