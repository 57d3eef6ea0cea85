package model

import "slices"

// LookupOutcome is the result of looking up one target. A failed outcome
// never carries records and a successful one never carries an error.
type LookupOutcome struct {
	Success bool              `json:"success" yaml:"success"`
	Target  Target            `json:"target" yaml:"target"`
	Records []ViolationRecord `json:"records" yaml:"records"`
	Error   string            `json:"error,omitempty" yaml:"error,omitempty"`
	Cached  bool              `json:"cached" yaml:"cached"`
}

// Succeeded builds a successful outcome. A nil slice is normalized to an
// empty one so "no violations" serializes as [].
func Succeeded(t Target, records []ViolationRecord) LookupOutcome {
	if records == nil {
		records = []ViolationRecord{}
	}
	return LookupOutcome{Success: true, Target: t, Records: records}
}

// Failed builds a failed outcome from err.
func Failed(t Target, err error) LookupOutcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return LookupOutcome{Target: t, Records: []ViolationRecord{}, Error: msg}
}

// FromCache builds a successful outcome served from the cache. The record
// slice is cloned so callers cannot mutate cached state.
func FromCache(t Target, records []ViolationRecord) LookupOutcome {
	o := Succeeded(t, slices.Clone(records))
	o.Cached = true
	return o
}

// Summary counts successes and failures across outcomes.
func Summary(outcomes []LookupOutcome) (successful, failed int) {
	for _, o := range outcomes {
		if o.Success {
			successful++
		} else {
			failed++
		}
	}
	return successful, failed
}
