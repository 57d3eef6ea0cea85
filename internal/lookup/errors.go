package lookup

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/violation-lookup/internal/extract"
)

// Step names a stage of the search protocol.
type Step string

const (
	StepPage     Step = "page"
	StepNavigate Step = "navigate"
	StepForm     Step = "form"
	StepSelect   Step = "select"
	StepFill     Step = "fill"
	StepSubmit   Step = "submit"
	StepCount    Step = "count"
)

var (
	ErrNavigationTimeout = eris.New("search page did not load")
	ErrFormTimeout       = eris.New("search form did not appear")
	ErrFormInput         = eris.New("search form rejected input")
	ErrSubmitTimeout     = eris.New("search results did not load")
	// ErrExtraction marks unreadable result markup.
	ErrExtraction = extract.ErrExtraction
)

// StepError records which step of a lookup failed. errors.Is matches both
// the step's sentinel and the underlying cause.
type StepError struct {
	Step  Step
	Plate string
	Err   error
}

func (e *StepError) Error() string {
	if s := e.sentinel(); s != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Step, e.Plate, s, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Step, e.Plate, e.Err)
}

func (e *StepError) Unwrap() []error {
	if s := e.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

func (e *StepError) sentinel() error {
	switch e.Step {
	case StepNavigate:
		return ErrNavigationTimeout
	case StepForm:
		return ErrFormTimeout
	case StepSelect, StepFill:
		return ErrFormInput
	case StepSubmit:
		return ErrSubmitTimeout
	case StepCount:
		return ErrExtraction
	}
	return nil
}

func stepErr(step Step, plate string, err error) *StepError {
	return &StepError{Step: step, Plate: plate, Err: err}
}
