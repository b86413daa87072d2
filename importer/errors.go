package importer

import "fmt"

// Fatal pipeline errors. Each aborts the whole document import with no
// partial mutation; per-line problems are accumulated as Summary warnings
// instead and never surface as errors.

// MalformedInputError covers input that is not usable at all: empty upload,
// invalid XML, missing infNFe root, or a document whose access key cannot be
// extracted.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid NFe document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid NFe document: %s", e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// DuplicateInvoiceError is raised when the access key was already imported,
// whether caught by the gate's lookup or by the unique constraint at write
// time (a race between concurrent imports of the same document).
type DuplicateInvoiceError struct {
	Number     string
	Series     string
	IssuerName string
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("NFe %s series %s from %s has already been imported",
		e.Number, e.Series, e.IssuerName)
}

// MissingPrerequisiteError signals a configuration problem rather than a data
// problem: no default product category, or no internal stock location.
type MissingPrerequisiteError struct {
	Prerequisite string
}

func (e *MissingPrerequisiteError) Error() string {
	return "missing prerequisite: " + e.Prerequisite
}
