package vehicles

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type decodeRequest struct {
	VIN string `json:"vin"`
}

type decodeResponse struct {
	Success     bool            `json:"success"`
	VehicleInfo *decodedVehicle `json:"vehicle_info"`
	Error       string          `json:"error"`
}

type decodedVehicle struct {
	Make   string  `json:"make"`
	Model  string  `json:"model"`
	Year   flexInt `json:"year"`
	Trim   string  `json:"trim"`
	Engine string  `json:"engine"`
}

// flexInt accepts the decoder's year as either a number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
