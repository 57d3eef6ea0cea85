package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"car plate", Target{PlateNumber: "30E43807", VehicleClass: VehicleClassCar}, false},
		{"two letter series", Target{PlateNumber: "51AB12345", VehicleClass: VehicleClassMotorbike}, false},
		{"lower case accepted", Target{PlateNumber: "29a98765", VehicleClass: VehicleClassCar}, false},
		{"surrounding spaces", Target{PlateNumber: " 30E43807 ", VehicleClass: VehicleClassElectricBike}, false},
		{"empty plate", Target{PlateNumber: "", VehicleClass: VehicleClassCar}, true},
		{"dash separated", Target{PlateNumber: "30E-438.07", VehicleClass: VehicleClassCar}, true},
		{"too few digits", Target{PlateNumber: "30E438", VehicleClass: VehicleClassCar}, true},
		{"three letters", Target{PlateNumber: "30ABC1234", VehicleClass: VehicleClassCar}, true},
		{"unknown class", Target{PlateNumber: "30E43807", VehicleClass: "truck"}, true},
		{"empty class", Target{PlateNumber: "30E43807"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.target.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTarget))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseVehicleClass(t *testing.T) {
	t.Parallel()

	c, err := ParseVehicleClass("")
	require.NoError(t, err)
	assert.Equal(t, VehicleClassCar, c)

	c, err = ParseVehicleClass(" MotorBike ")
	require.NoError(t, err)
	assert.Equal(t, VehicleClassMotorbike, c)

	c, err = ParseVehicleClass("electricbike")
	require.NoError(t, err)
	assert.Equal(t, VehicleClassElectricBike, c)

	_, err = ParseVehicleClass("bus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestTargetCacheKey(t *testing.T) {
	t.Parallel()

	a := Target{PlateNumber: "30e43807 ", VehicleClass: VehicleClassCar}
	b := Target{PlateNumber: "30E43807", VehicleClass: VehicleClassCar}
	c := Target{PlateNumber: "30E43807", VehicleClass: VehicleClassMotorbike}

	assert.Equal(t, "violations:30E43807:car", a.CacheKey())
	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, b.CacheKey(), c.CacheKey())
	assert.Equal(t, "30E43807", a.Normalized())
}

func TestAllVehicleClasses(t *testing.T) {
	t.Parallel()
	for _, c := range AllVehicleClasses() {
		assert.True(t, c.Valid(), "class %s should be valid", c)
	}
	assert.Len(t, AllVehicleClasses(), 3)
}
