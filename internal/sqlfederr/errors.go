// Package sqlfederr defines the typed error taxonomy shared across every
// backend connector, decoder, and provisioning path.
package sqlfederr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it without parsing
// error strings. The core never retries based on Kind; that decision
// belongs to the caller.
type Kind string

const (
	// KindSchemaMismatch means a vendor's reported schema could not be
	// mapped onto the canonical type system.
	KindSchemaMismatch Kind = "schema_mismatch"
	// KindVendorFetch means the round trip to the backend itself failed
	// (network, auth, vendor-side query error).
	KindVendorFetch Kind = "vendor_fetch"
	// KindDecode means vendor wire bytes could not be decoded into the
	// canonical columnar representation.
	KindDecode Kind = "decode"
	// KindIntegerOverflow means a decoded value does not fit the target
	// representation (e.g. NUMERIC exceeding decimal128 precision).
	KindIntegerOverflow Kind = "integer_overflow"
	// KindProvisioning means DDL or data-management operations against a
	// backend failed.
	KindProvisioning Kind = "provisioning"
	// KindConfiguration means required configuration or secrets were
	// missing or malformed.
	KindConfiguration Kind = "configuration"
	// KindVectorSearch means a similarity-search request failed.
	KindVectorSearch Kind = "vector_search"
	// KindUnsupported means the caller asked for a capability the
	// backend does not offer.
	KindUnsupported Kind = "unsupported"
)

// Error is the single error type returned across package boundaries in
// this module. It carries enough structure for logging and metrics
// without requiring string matching.
type Error struct {
	Kind       Kind
	VendorType string // "postgres", "sqlite", "snowflake", "odbc", "flightsql"
	Op         string // short operation name, e.g. "QueryArrow", "InsertBatch"
	cause      error
}

// New constructs an Error wrapping cause. cause may be nil.
func New(kind Kind, vendorType, op string, cause error) *Error {
	return &Error{Kind: kind, VendorType: vendorType, Op: op, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.VendorType)
	}
	return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.VendorType, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets errors.Is match on Kind alone by comparing against a sentinel
// built with New(kind, "", "", nil).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.VendorType != "" && t.VendorType != e.VendorType {
		return false
	}
	return true
}

// OfKind is a convenience sentinel for errors.Is(err, OfKind(KindDecode)).
func OfKind(kind Kind) error {
	return &Error{Kind: kind}
}
