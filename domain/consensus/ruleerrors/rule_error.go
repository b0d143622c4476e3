package ruleerrors

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

// These constants are used to identify a specific RuleError.
var (
	// ErrDuplicateBlock indicates a block with the same hash already
	// exists, either stored or waiting in the orphan pool.
	ErrDuplicateBlock = newRuleError("ErrDuplicateBlock")

	// ErrInvalidAncestorBlock indicates a block descends from a block that
	// was rejected.
	ErrInvalidAncestorBlock = newRuleError("ErrInvalidAncestorBlock")

	// ErrUnexpectedGenesis indicates a block without a parent that is not
	// the genesis block of the network.
	ErrUnexpectedGenesis = newRuleError("ErrUnexpectedGenesis")

	// ErrUnexpectedDifficulty indicates the header bits differ from the
	// network's fixed target.
	ErrUnexpectedDifficulty = newRuleError("ErrUnexpectedDifficulty")

	// ErrProofOfWorkInvalid indicates the block hash is above the target
	// encoded in its header.
	ErrProofOfWorkInvalid = newRuleError("ErrProofOfWorkInvalid")

	// ErrMerkleRootMismatch indicates the calculated merkle root does not
	// match the expected value.
	ErrMerkleRootMismatch = newRuleError("ErrMerkleRootMismatch")

	// ErrDuplicateTransaction indicates a block contains an identical
	// transaction (or at least two transactions which hash to the same
	// value). A block must not contain duplicate transactions.
	ErrDuplicateTransaction = newRuleError("ErrDuplicateTransaction")

	// ErrTooManyTransactions indicates a block has more transactions than
	// the block size limit.
	ErrTooManyTransactions = newRuleError("ErrTooManyTransactions")

	// ErrNoTransactions indicates the block does not have at least one
	// transaction. A valid block must have at least the coinbase
	// transaction.
	ErrNoTransactions = newRuleError("ErrNoTransactions")

	// ErrFirstTxNotCoinbase indicates the first transaction in a block
	// is not a coinbase transaction.
	ErrFirstTxNotCoinbase = newRuleError("ErrFirstTxNotCoinbase")

	// ErrMultipleCoinbases indicates a block contains more than one
	// coinbase transaction.
	ErrMultipleCoinbases = newRuleError("ErrMultipleCoinbases")

	// ErrBadCoinbaseHeight indicates the coinbase claims a different height
	// than the block it is in.
	ErrBadCoinbaseHeight = newRuleError("ErrBadCoinbaseHeight")

	// ErrInvalidCoinbaseReward indicates the coinbase does not pay exactly
	// the subsidy scheduled for the block height.
	ErrInvalidCoinbaseReward = newRuleError("ErrInvalidCoinbaseReward")

	// ErrBadTransactionStructure indicates a transaction that is neither a
	// well formed coinbase nor a well formed spend.
	ErrBadTransactionStructure = newRuleError("ErrBadTransactionStructure")

	// ErrNoTxOutputs indicates a transaction does not have any outputs.
	ErrNoTxOutputs = newRuleError("ErrNoTxOutputs")

	// ErrBadTxOutValue indicates the output values of a transaction overflow.
	ErrBadTxOutValue = newRuleError("ErrBadTxOutValue")

	// ErrUnknownOutput indicates a transaction spends an outpoint that does
	// not exist or has already been spent.
	ErrUnknownOutput = newRuleError("ErrUnknownOutput")

	// ErrOwnershipMismatch indicates the spending public key does not hash
	// to the owner of the spent output.
	ErrOwnershipMismatch = newRuleError("ErrOwnershipMismatch")

	// ErrInvalidSignature indicates the signature does not verify against
	// the public key.
	ErrInvalidSignature = newRuleError("ErrInvalidSignature")

	// ErrInsufficientFunds indicates the outputs of a spend are worth more
	// than the output it consumes.
	ErrInsufficientFunds = newRuleError("ErrInsufficientFunds")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or transaction failed due to one of the many
// validation rules. The caller can use errors.Is or errors.As to find
// which rule was broken.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

// Is makes a RuleError carrying details match its bare sentinel, so
// errors.Is(err, ErrUnknownOutput) holds for NewErrUnknownOutput(...).
func (e RuleError) Is(target error) bool {
	other, ok := target.(RuleError)
	return ok && other.message == e.message
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// ErrMissingTxOut indicates a transaction output referenced by an input
// either does not exist or has already been spent.
type ErrMissingTxOut struct {
	MissingOutpoint externalapi.DomainOutpoint
}

func (e ErrMissingTxOut) Error() string {
	return fmt.Sprintf("missing outpoint %s", e.MissingOutpoint)
}

// NewErrUnknownOutput creates an ErrUnknownOutput RuleError detailing the
// missing outpoint
func NewErrUnknownOutput(outpoint externalapi.DomainOutpoint) error {
	return errors.WithStack(RuleError{
		message: ErrUnknownOutput.message,
		inner:   ErrMissingTxOut{outpoint},
	})
}

// ErrSpendTooHigh details an ErrInsufficientFunds violation
type ErrSpendTooHigh struct {
	InputValue  uint64
	OutputValue uint64
}

func (e ErrSpendTooHigh) Error() string {
	return fmt.Sprintf("outputs are worth %d but the input is only worth %d", e.OutputValue, e.InputValue)
}

// NewErrInsufficientFunds creates an ErrInsufficientFunds RuleError
// detailing the input and output values
func NewErrInsufficientFunds(inputValue, outputValue uint64) error {
	return errors.WithStack(RuleError{
		message: ErrInsufficientFunds.message,
		inner:   ErrSpendTooHigh{InputValue: inputValue, OutputValue: outputValue},
	})
}

// IsRuleError returns whether err is, or wraps, a RuleError.
func IsRuleError(err error) bool {
	var ruleError RuleError
	return errors.As(err, &ruleError)
}
