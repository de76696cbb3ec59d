package app

import "adopt-go/internal/adopt"

// Operation tracks a CLI command that may mutate the ledger.
// Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the database).
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Caller     string
	Status     string // "success" or the ErrorKind of the failure
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Finish sets the status from the outcome of the command.
func (op *Operation) Finish(err error) {
	if err == nil {
		op.Status = "success"
		return
	}
	op.Status = adopt.ErrorKind(err)
}
