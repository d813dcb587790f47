package spmdsim

import "fmt"

// A ParseError reports a syntactically invalid line in an input file,
// with the file name and 1-based line number where reading stopped.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// An UnsupportedFormatError reports a Touchstone option line whose
// parameter type, data format, or frequency unit the reader does not handle.
type UnsupportedFormatError struct {
	File  string
	Token string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: unsupported touchstone option %q", e.File, e.Token)
}

// An InvalidTopologyError reports a topology parameter whose value cannot
// produce a solvable network.
type InvalidTopologyError struct {
	Field string
	Msg   string
}

func (e *InvalidTopologyError) Error() string {
	return fmt.Sprintf("invalid topology: %s: %s", e.Field, e.Msg)
}

// A DegenerateLengthError reports an attempt to build a cable segment of
// zero or negative length.
type DegenerateLengthError struct {
	Length float64
}

func (e *DegenerateLengthError) Error() string {
	return fmt.Sprintf("degenerate cable segment length %g m", e.Length)
}

// A SingularConversionError reports an S-to-Y parameter conversion that
// failed because (I+S) is not invertible.  Freq is the sweep frequency the
// conversion was evaluated at, when known.
type SingularConversionError struct {
	Freq float64
}

func (e *SingularConversionError) Error() string {
	return fmt.Sprintf("singular S-to-Y conversion at %g Hz", e.Freq)
}

// A SingularMatrixError reports a nodal admittance matrix that could not
// be factored, or a solution whose residual exceeds the solver tolerance.
type SingularMatrixError struct {
	Freq   float64
	Detail string
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("singular admittance matrix at %g Hz: %s", e.Freq, e.Detail)
}
