package adopt

import "errors"

// Rejections. Every operation that returns one of these has left the ledger
// unchanged.
var (
	ErrResourceAlreadyExist = errors.New("resource already exist")
	ErrResourceNotExist     = errors.New("resource not exist")
	ErrResourceAdopted      = errors.New("resource adopted")
	ErrResourceFreezed      = errors.New("resource freezed")
	ErrIllegalTimestamp     = errors.New("illegal timestamp")
	ErrIllegalAdopter       = errors.New("illegal adopter")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInvalidResource      = errors.New("invalid resource")
	ErrContractNotExist     = errors.New("contract not exist")
)

// Treasury failures, propagated unchanged from the Treasury implementation.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidIdentity   = errors.New("invalid identity")
)

var (
	// ErrJournalCorrupt means a key's event hash chain does not verify.
	ErrJournalCorrupt = errors.New("journal corrupt")

	// ErrCompensationFailed means an adoption was paid for but could not be
	// recorded, and refunding the adopter failed as well.
	ErrCompensationFailed = errors.New("compensation failed")
)

var errorKinds = []struct {
	err  error
	name string
}{
	{ErrCompensationFailed, "CompensationFailed"},
	{ErrResourceAlreadyExist, "ResourceAlreadyExist"},
	{ErrResourceNotExist, "ResourceNotExist"},
	{ErrResourceAdopted, "ResourceAdopted"},
	{ErrResourceFreezed, "ResourceFreezed"},
	{ErrIllegalTimestamp, "IllegalTimestamp"},
	{ErrIllegalAdopter, "IllegalAdopter"},
	{ErrUnauthenticated, "Unauthenticated"},
	{ErrInvalidResource, "InvalidResource"},
	{ErrContractNotExist, "ContractNotExist"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrInvalidIdentity, "InvalidIdentity"},
	{ErrJournalCorrupt, "JournalCorrupt"},
}

// ErrorKind names the taxonomy entry err belongs to: "" for nil, "Internal"
// for errors outside the taxonomy.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// IsRejection reports whether err is one of the ledger's rule violations
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrResourceAlreadyExist, ErrResourceNotExist, ErrResourceAdopted,
		ErrResourceFreezed, ErrIllegalTimestamp, ErrIllegalAdopter,
		ErrUnauthenticated, ErrInvalidResource, ErrInsufficientFunds,
		ErrInvalidIdentity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
