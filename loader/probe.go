package loader

import "fmt"

// Outcome tells what a format probe did with an image.
type Outcome int

const (
	// NotApplicable means the image is not in the probed format.
	NotApplicable Outcome = iota
	// Failed means the image is in the probed format but cannot be loaded.
	Failed
	// Committed means control was transferred to the image.
	Committed
)

func (o Outcome) String() string {
	switch o {
	case NotApplicable:
		return "not applicable"
	case Failed:
		return "failed"
	case Committed:
		return "committed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is the outcome of a probe. Err is only set for Failed.
type Result struct {
	Outcome Outcome
	Err     error
}

func (r Result) String() string {
	if r.Outcome == Failed {
		return fmt.Sprintf("failed: %v", r.Err)
	}
	return r.Outcome.String()
}

func notApplicable() Result   { return Result{Outcome: NotApplicable} }
func failed(err error) Result { return Result{Outcome: Failed, Err: err} }
func committed() Result       { return Result{Outcome: Committed} }

type probe struct {
	name string
	load func(s *session) Result
}

var (
	multibootProbe = probe{name: "Multiboot", load: loadMultiboot}
	elfProbe       = probe{name: "ELF", load: loadELF}
	coffProbe      = probe{name: "PE/COFF", load: loadCOFF}
	binaryProbe    = probe{name: "binary", load: loadBinary}
)

// probesFor returns the probes tried for an image of type t, in order.
func probesFor(t Type) []probe {
	switch t {
	case Multiboot:
		return []probe{multibootProbe}
	case Relocatable:
		return []probe{elfProbe, coffProbe}
	case Binary:
		return []probe{binaryProbe}
	}
	return []probe{multibootProbe, elfProbe, coffProbe, binaryProbe}
}
