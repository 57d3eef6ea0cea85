package model

// Field is a value scraped from the result page that may be missing from
// the markup. It renders as an empty string on the wire.
type Field struct {
	Value   string
	Present bool
}

// Found wraps a value that was present on the page.
func Found(v string) Field { return Field{Value: v, Present: true} }

// Absent is the zero Field.
func Absent() Field { return Field{} }

func (f Field) String() string {
	if !f.Present {
		return ""
	}
	return f.Value
}

// VehicleInfo describes the vehicle on a violation card.
type VehicleInfo struct {
	VehicleType string `json:"vehicleType" yaml:"vehicle_type"`
	PlateColor  string `json:"plateColor" yaml:"plate_color"`
}

// ViolationDetail describes what happened, when and where.
type ViolationDetail struct {
	ViolationType string `json:"violationType" yaml:"violation_type"`
	Time          string `json:"time" yaml:"time"`
	Location      string `json:"location" yaml:"location"`
}

// ProcessingUnit describes the police units that detected and resolve the
// violation.
type ProcessingUnit struct {
	DetectingUnit    string `json:"detectingUnit" yaml:"detecting_unit"`
	DetectingAddress string `json:"detectingAddress" yaml:"detecting_address"`
	ResolvingUnit    string `json:"resolvingUnit" yaml:"resolving_unit"`
	ResolvingAddress string `json:"resolvingAddress" yaml:"resolving_address"`
	Phone            string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// ViolationRecord is one result card parsed into typed fields. All fields
// are best effort; missing markup yields empty strings.
type ViolationRecord struct {
	PlateNumber     string          `json:"plateNumber" yaml:"plate_number"`
	Status          string          `json:"status" yaml:"status"`
	VehicleInfo     VehicleInfo     `json:"vehicleInfo" yaml:"vehicle_info"`
	ViolationDetail ViolationDetail `json:"violationDetail" yaml:"violation_detail"`
	ProcessingUnit  ProcessingUnit  `json:"processingUnit" yaml:"processing_unit"`
}
