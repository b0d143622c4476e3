package mempool

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a transaction failed due to one of the many validation
// rules. The underlying error in Err is either a TxRuleError or a
// ruleerrors.RuleError.
type RuleError struct {
	Err error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.Err == nil {
		return "<nil>"
	}
	return e.Err.Error()
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.Err
}

// RejectCode represents a numeric value by which a remote peer indicates
// why a message was rejected.
type RejectCode uint8

// These constants define the various supported reject codes.
const (
	RejectInvalid   RejectCode = 0x10
	RejectDuplicate RejectCode = 0x12
	RejectConflict  RejectCode = 0x13
	RejectFull      RejectCode = 0x14
)

// Map of reject codes back strings for pretty printing.
var rejectCodeStrings = map[RejectCode]string{
	RejectInvalid:   "REJECT_INVALID",
	RejectDuplicate: "REJECT_DUPLICATE",
	RejectConflict:  "REJECT_MEMPOOL_CONFLICT",
	RejectFull:      "REJECT_FULL",
}

// String returns the RejectCode in human-readable form.
func (code RejectCode) String() string {
	if s, ok := rejectCodeStrings[code]; ok {
		return s
	}

	return fmt.Sprintf("Unknown RejectCode (%d)", uint8(code))
}

// TxRuleError identifies a rule violation that is specific to the mempool,
// as opposed to the transaction being invalid in itself.
type TxRuleError struct {
	RejectCode  RejectCode // The code to send with reject messages
	Description string     // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e TxRuleError) Error() string {
	return e.Description
}

// txRuleError creates an underlying TxRuleError with the given a set of
// arguments and returns a RuleError that encapsulates it.
func txRuleError(c RejectCode, desc string) RuleError {
	return RuleError{
		Err: TxRuleError{RejectCode: c, Description: desc},
	}
}

// ExtractRejectCode returns the reject code that describes err. It returns
// false if err is not a rejection.
func ExtractRejectCode(err error) (RejectCode, bool) {
	var trErr TxRuleError
	if errors.As(err, &trErr) {
		return trErr.RejectCode, true
	}
	if ruleerrors.IsRuleError(err) {
		return RejectInvalid, true
	}
	return RejectInvalid, false
}

// IsMempoolConflict returns whether err rejects a transaction for spending
// an outpoint another pooled transaction already spends.
func IsMempoolConflict(err error) bool {
	code, ok := ExtractRejectCode(err)
	return ok && code == RejectConflict
}
