package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/violation-lookup/internal/config"
	"github.com/sells-group/violation-lookup/internal/model"
)

func TestParseTargets(t *testing.T) {
	targets, err := parseTargets([]string{"30E43807", "51f12345:motorbike", " 29A98765 :Electricbike"}, "car")
	require.NoError(t, err)
	assert.Equal(t, []model.Target{
		{PlateNumber: "30E43807", VehicleClass: model.VehicleClassCar},
		{PlateNumber: "51f12345", VehicleClass: model.VehicleClassMotorbike},
		{PlateNumber: "29A98765", VehicleClass: model.VehicleClassElectricBike},
	}, targets)
}

func TestParseTargets_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		def  string
	}{
		{"bad default type", []string{"30E43807"}, "truck"},
		{"bad inline type", []string{"30E43807:bus"}, "car"},
		{"bad plate", []string{"30E"}, "car"},
		{"empty plate", []string{":car"}, "car"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTargets(tt.args, tt.def)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidTarget))
		})
	}
}

var sampleOutcomes = []model.LookupOutcome{
	model.Succeeded(model.Target{PlateNumber: "30E43807", VehicleClass: model.VehicleClassCar}, []model.ViolationRecord{{
		PlateNumber:     "30E-438.07",
		Status:          "Chưa xử phạt",
		ViolationDetail: model.ViolationDetail{ViolationType: "Quá tốc độ", Location: "Đại lộ Thăng Long"},
	}}),
	model.FromCache(model.Target{PlateNumber: "29A98765", VehicleClass: model.VehicleClassMotorbike}, nil),
	model.Failed(model.Target{PlateNumber: "51F12345", VehicleClass: model.VehicleClassCar}, errors.New("search results did not load")),
}

func TestWriteOutcomes_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutcomes(&buf, formatTable, sampleOutcomes))

	out := buf.String()
	assert.Contains(t, out, "30E43807")
	assert.Contains(t, out, "Quá tốc độ")
	assert.Contains(t, out, "29A98765 (cached)")
	assert.Contains(t, out, "no violations")
	assert.Contains(t, out, "search results did not load")
	assert.Contains(t, out, "2 ok, 1 failed")
}

func TestWriteOutcomes_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutcomes(&buf, formatJSON, sampleOutcomes))

	var got []model.LookupOutcome
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 3)
	assert.True(t, got[1].Cached)
	assert.Equal(t, "search results did not load", got[2].Error)
}

func TestWriteOutcomes_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutcomes(&buf, formatYAML, sampleOutcomes[:1]))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, true, got[0]["success"])
	assert.Contains(t, buf.String(), "plate_number: 30E-438.07")
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml"} {
		assert.NoError(t, validFormat(f))
	}
	assert.Error(t, validFormat("xml"))
	assert.Error(t, encode(&bytes.Buffer{}, "xml", nil))
}

func TestWireFromConfig(t *testing.T) {
	chdir(t, t.TempDir())
	c, err := config.Load()
	require.NoError(t, err)

	so := sessionOptions(c)
	assert.True(t, so.Launch.Headless)
	assert.Equal(t, c.Browser.LaunchArgs, so.Launch.Args)
	assert.Equal(t, c.Browser.LaunchTimeout(), so.Launch.Timeout)
	assert.Equal(t, c.Browser.ActionTimeout(), so.Context.DefaultTimeout)
	assert.Equal(t, 2, so.Retry.MaxAttempts)
	assert.Equal(t, config.DefaultUserAgent, so.Context.UserAgent)

	oc := orchestratorConfig(c)
	assert.Equal(t, "https://www.csgt.vn/tra-cuu-phat-nguoi", oc.SearchURL)
	assert.Equal(t, "#submitBtn", oc.Form.Submit)
	assert.Equal(t, c.Timing.ResultSettle(), oc.ResultSettle)

	assert.Equal(t, ".violation-card", extractSelectors(c).Card)

	env, err := initLookup(c)
	require.NoError(t, err)
	assert.Equal(t, 0, env.Cache.Len())
	assert.False(t, env.Session.IsHealthy())
	env.Close()

	_, err = initLookup(nil)
	assert.Error(t, err)
}

const savedPage = `<html><body>
<div class="violation-card">
  <div class="violation-title">30E - 438.07</div>
  <span class="status-badge">Chưa xử phạt</span>
  <div class="info-item"><span class="label">Loại xe:</span><span class="value">Ô tô</span></div>
  <div class="info-item"><span class="label">Lỗi vi phạm:</span><span class="value">Quá tốc độ</span></div>
  <div class="info-item"><span class="label">Địa chỉ:</span><span class="value">Số 1 Phạm Hùng</span></div>
  <div class="info-item"><span class="label">Địa chỉ:</span><span class="value">Số 2 Trần Duy Hưng</span></div>
</div>
</body></html>`

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "result.html")
	require.NoError(t, os.WriteFile(path, []byte(savedPage), 0o644))

	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"parse", path, "-o", "json"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()
	require.NoError(t, rootCmd.Execute())

	var records []model.ViolationRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "30E-438.07", records[0].PlateNumber)
	assert.Equal(t, "Ô tô", records[0].VehicleInfo.VehicleType)
	assert.Equal(t, "Số 1 Phạm Hùng", records[0].ProcessingUnit.DetectingAddress)
	assert.Equal(t, "Số 2 Trần Duy Hưng", records[0].ProcessingUnit.ResolvingAddress)
}

func TestWriteRecords_EmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecords(&buf, formatJSON, nil))
	assert.JSONEq(t, `[]`, buf.String())
}
