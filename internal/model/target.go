package model

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// VehicleClass is the vehicle category selected on the portal's search form.
type VehicleClass string

const (
	VehicleClassMotorbike    VehicleClass = "motorbike"
	VehicleClassCar          VehicleClass = "car"
	VehicleClassElectricBike VehicleClass = "electricbike"
)

// AllVehicleClasses returns every class the portal accepts.
func AllVehicleClasses() []VehicleClass {
	return []VehicleClass{
		VehicleClassMotorbike,
		VehicleClassCar,
		VehicleClassElectricBike,
	}
}

// ParseVehicleClass maps user input onto a VehicleClass. Empty input yields
// the portal default (car).
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch VehicleClass(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return VehicleClassCar, nil
	case VehicleClassMotorbike:
		return VehicleClassMotorbike, nil
	case VehicleClassCar:
		return VehicleClassCar, nil
	case VehicleClassElectricBike:
		return VehicleClassElectricBike, nil
	}
	return "", eris.Wrapf(ErrInvalidTarget, "vehicle type must be one of motorbike, car, electricbike (got %q)", s)
}

// Valid reports whether c is one of the known classes.
func (c VehicleClass) Valid() bool {
	switch c {
	case VehicleClassMotorbike, VehicleClassCar, VehicleClassElectricBike:
		return true
	}
	return false
}

// ErrInvalidTarget is returned for targets that must not reach the browser.
var ErrInvalidTarget = eris.New("invalid target")

var platePattern = regexp.MustCompile(`(?i)^[0-9]{2}[A-Z]{1,2}[0-9]{4,5}$`)

// Target is one plate number + vehicle class pair to look up.
type Target struct {
	PlateNumber  string       `json:"plateNumber" yaml:"plate_number"`
	VehicleClass VehicleClass `json:"vehicleType" yaml:"vehicle_type"`
}

// Validate checks the plate against the portal's accepted format
// (e.g. 30E43807, 51AB12345) and the vehicle class against the enum.
func (t Target) Validate() error {
	plate := strings.TrimSpace(t.PlateNumber)
	if plate == "" {
		return eris.Wrap(ErrInvalidTarget, "plate number is required")
	}
	if !platePattern.MatchString(plate) {
		return eris.Wrapf(ErrInvalidTarget, "plate number %q does not match the expected format (e.g. 30E43807)", t.PlateNumber)
	}
	if !t.VehicleClass.Valid() {
		return eris.Wrapf(ErrInvalidTarget, "vehicle type must be one of motorbike, car, electricbike (got %q)", t.VehicleClass)
	}
	return nil
}

// Normalized returns the plate as typed into the search form: trimmed and
// upper-cased.
func (t Target) Normalized() string {
	return strings.ToUpper(strings.TrimSpace(t.PlateNumber))
}

// CacheKey derives the deterministic cache key for the target.
func (t Target) CacheKey() string {
	return "violations:" + t.Normalized() + ":" + string(t.VehicleClass)
}

func (t Target) String() string {
	return t.Normalized() + "/" + string(t.VehicleClass)
}
