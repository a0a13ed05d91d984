package resolver

// TriState is a boolean whose absence of an answer is representable. The
// stub-package question must never report a confirmed "no" when the index
// lookup itself failed.
type TriState int

const (
	Unknown TriState = iota
	False
	True
)

func (t TriState) String() string {
	switch t {
	case True:
		return "True"
	case False:
		return "False"
	default:
		return "Unknown"
	}
}

// Known reports whether t carries a definitive answer.
func (t TriState) Known() bool {
	return t == True || t == False
}

func triFromBool(b bool) TriState {
	if b {
		return True
	}
	return False
}

// Record is one resolved dataset row: the type-hint status of a single
// package. Package holds the normalized project name.
type Record struct {
	Package         string
	HasPyTyped      bool
	HasTypesPackage TriState
}

// Outcome pairs a record with its terminal error for batch resolution. When
// Err is non-nil it is a *ResolutionError and Record is meaningless beyond
// its Package field.
type Outcome struct {
	Record Record
	Err    error
}
