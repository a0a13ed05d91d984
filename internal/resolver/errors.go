package resolver

import "fmt"

// ResolutionError is the terminal failure for one package: retries are
// exhausted or the failure is not retryable, and the package's typing status
// could not be determined. It never aborts the batch it belongs to.
type ResolutionError struct {
	Package string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Package, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func resolutionError(pkg string, err error) *ResolutionError {
	if re, ok := err.(*ResolutionError); ok {
		return re
	}
	return &ResolutionError{Package: pkg, Err: err}
}
