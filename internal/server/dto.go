package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sells-group/violation-lookup/internal/model"
)

// Validation messages match the portal-facing API clients already handle.
const (
	msgPlateRequired = "Biển số xe không được để trống"
	msgPlateString   = "Biển số xe phải là chuỗi ký tự"
	msgPlateFormat   = "Biển số xe không đúng định dạng (VD: 30E43807)"
	msgVehicleType   = "Loại xe phải là: motorbike, car, hoặc electricbike"
	msgListArray     = "Danh sách biển số phải là một mảng"
	msgListMin       = "Phải có ít nhất 1 biển số để tra cứu"
	msgListMaxFmt    = "Chỉ được tra cứu tối đa %d biển số cùng lúc"
	msgInvalidBody   = "invalid request body"
	msgUnknownField  = "property %s should not exist"
)

const maxBodyBytes = 64 << 10

type lookupItem struct {
	PlateNumber json.RawMessage `json:"plateNumber"`
	VehicleType json.RawMessage `json:"vehicleType"`
}

type batchRequest struct {
	PlateNumbers json.RawMessage `json:"plateNumbers"`
}

type resultDTO struct {
	Success     bool                    `json:"success"`
	PlateNumber string                  `json:"plateNumber"`
	VehicleType model.VehicleClass      `json:"vehicleType"`
	Data        []model.ViolationRecord `json:"data"`
	Error       string                  `json:"error,omitempty"`
	Cached      bool                    `json:"cached"`
}

type batchResponse struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Results    []resultDTO `json:"results"`
}

type healthResponse struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Uptime    float64       `json:"uptime"`
	Browser   browserStatus `json:"browser"`
}

type browserStatus struct {
	Status  string `json:"status"`
	Healthy bool   `json:"healthy"`
	State   string `json:"state"`
}

type browserHealthResponse struct {
	Healthy bool   `json:"healthy"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error    string   `json:"error"`
	Messages []string `json:"messages,omitempty"`
}

func toResult(o model.LookupOutcome) resultDTO {
	data := o.Records
	if data == nil {
		data = []model.ViolationRecord{}
	}
	return resultDTO{
		Success:     o.Success,
		PlateNumber: o.Target.PlateNumber,
		VehicleType: o.Target.VehicleClass,
		Data:        data,
		Error:       o.Error,
		Cached:      o.Cached,
	}
}

func toBatchResponse(outcomes []model.LookupOutcome) batchResponse {
	ok, failed := model.Summary(outcomes)
	results := make([]resultDTO, len(outcomes))
	for i, o := range outcomes {
		results[i] = toResult(o)
	}
	return batchResponse{Total: len(outcomes), Successful: ok, Failed: failed, Results: results}
}

// validationError carries every message found in a request.
type validationError struct {
	messages []string
}

func (e *validationError) Error() string { return strings.Join(e.messages, "; ") }

// decodeBody reads a JSON body into dst. Fields dst does not declare are
// rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if name, ok := unknownField(err); ok {
			return &validationError{messages: []string{fmt.Sprintf(msgUnknownField, name)}}
		}
		return &validationError{messages: []string{msgInvalidBody}}
	}
	return nil
}

func decodeStrict(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// unknownField extracts the field name from a DisallowUnknownFields error.
func unknownField(err error) (string, bool) {
	name, ok := strings.CutPrefix(err.Error(), "json: unknown field ")
	if !ok {
		return "", false
	}
	return strings.Trim(name, `"`), true
}

// parseItem validates one plate/vehicle-type pair. The vehicle type
// defaults to car when omitted.
func parseItem(item lookupItem, prefix string) (model.Target, []string) {
	var msgs []string
	var t model.Target

	raw := strings.TrimSpace(string(item.PlateNumber))
	switch {
	case raw == "" || raw == "null":
		msgs = append(msgs, prefix+msgPlateRequired)
	default:
		var plate string
		if err := json.Unmarshal(item.PlateNumber, &plate); err != nil {
			msgs = append(msgs, prefix+msgPlateString)
		} else if strings.TrimSpace(plate) == "" {
			msgs = append(msgs, prefix+msgPlateRequired)
		} else {
			t.PlateNumber = plate
			if err := (model.Target{PlateNumber: plate, VehicleClass: model.VehicleClassCar}).Validate(); err != nil {
				msgs = append(msgs, prefix+msgPlateFormat)
			}
		}
	}

	t.VehicleClass = model.VehicleClassCar
	if vt := strings.TrimSpace(string(item.VehicleType)); vt != "" && vt != "null" {
		var s string
		if err := json.Unmarshal(item.VehicleType, &s); err != nil {
			msgs = append(msgs, prefix+msgVehicleType)
		} else if c := model.VehicleClass(s); c.Valid() {
			t.VehicleClass = c
		} else {
			msgs = append(msgs, prefix+msgVehicleType)
		}
	}
	return t, msgs
}

func parseBatch(req batchRequest, maxTargets int) ([]model.Target, error) {
	raw := strings.TrimSpace(string(req.PlateNumbers))
	if raw == "" || raw[0] != '[' {
		return nil, &validationError{messages: []string{msgListArray}}
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(req.PlateNumbers, &raws); err != nil {
		return nil, &validationError{messages: []string{msgListArray}}
	}
	if len(raws) < 1 {
		return nil, &validationError{messages: []string{msgListMin}}
	}
	if len(raws) > maxTargets {
		return nil, &validationError{messages: []string{fmt.Sprintf(msgListMaxFmt, maxTargets)}}
	}

	targets := make([]model.Target, len(raws))
	var msgs []string
	for i, raw := range raws {
		prefix := fmt.Sprintf("plateNumbers.%d: ", i)
		var item lookupItem
		if err := decodeStrict(raw, &item); err != nil {
			if name, ok := unknownField(err); ok {
				msgs = append(msgs, prefix+fmt.Sprintf(msgUnknownField, name))
				continue
			}
			return nil, &validationError{messages: []string{msgListArray}}
		}
		t, itemMsgs := parseItem(item, prefix)
		targets[i] = t
		msgs = append(msgs, itemMsgs...)
	}
	if len(msgs) > 0 {
		return nil, &validationError{messages: msgs}
	}
	return targets, nil
}

func writeValidation(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.messages[0], Messages: ve.messages})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
