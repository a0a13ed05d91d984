package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"pypitypes/internal/resolver"
)

// ConsoleSink prints one status line per resolved package and keeps the
// counts for a final summary.
type ConsoleSink struct {
	writer io.Writer
	mu     sync.Mutex

	typed   int
	stubbed int
	untyped int
	unknown int
	failed  int
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{writer: w}
}

var (
	typedColor   = color.New(color.FgGreen)
	stubbedColor = color.New(color.FgCyan)
	untypedColor = color.New(color.FgYellow)
	unknownColor = color.New(color.FgMagenta)
	errorColor   = color.New(color.FgRed)
)

func (s *ConsoleSink) Write(res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := fmt.Sprintf("[%d/%d] ", res.Index+1, res.Total)

	if err := res.Outcome.Err; err != nil {
		s.failed++
		var re *resolver.ResolutionError
		name := "?"
		if errors.As(err, &re) {
			name = re.Package
		}
		_, werr := errorColor.Fprintf(s.writer, "%serror  %s: %v\n", prefix, name, err)
		return werr
	}

	rec := res.Outcome.Record
	var werr error
	switch {
	case rec.HasPyTyped:
		s.typed++
		_, werr = typedColor.Fprintf(s.writer, "%styped  %s (ships py.typed)\n", prefix, rec.Package)
	case rec.HasTypesPackage == resolver.True:
		s.stubbed++
		_, werr = stubbedColor.Fprintf(s.writer, "%sstubs  %s (types-%s)\n", prefix, rec.Package, rec.Package)
	case rec.HasTypesPackage == resolver.Unknown:
		s.unknown++
		_, werr = unknownColor.Fprintf(s.writer, "%s?      %s (stub lookup indeterminate)\n", prefix, rec.Package)
	default:
		s.untyped++
		_, werr = untypedColor.Fprintf(s.writer, "%suntyped %s\n", prefix, rec.Package)
	}
	return werr
}

// Summary prints the aggregate counts once the batch is done.
func (s *ConsoleSink) Summary() {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.typed + s.stubbed + s.untyped + s.unknown + s.failed
	fmt.Fprintf(s.writer, "\n%d packages: %d typed, %d stub-only, %d untyped, %d unknown, %d failed\n",
		total, s.typed, s.stubbed, s.untyped, s.unknown, s.failed)
}

// Failed reports how many packages ended in a resolution error.
func (s *ConsoleSink) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *ConsoleSink) Close() error { return nil }
