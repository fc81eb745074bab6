package backend

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name       string
		raw        string
		status     int
		wantStatus int
		wantOK     bool
		wantError  string
	}{
		{name: "bare success", raw: `{"success":true}`, status: 200, wantStatus: 200, wantOK: true},
		{name: "bare failure", raw: `{"success":false,"error":"bad vin"}`, status: 200, wantStatus: 200, wantOK: false, wantError: "bad vin"},
		{name: "tuple", raw: `[{"success":true}, 201]`, status: 200, wantStatus: 201, wantOK: true},
		{name: "tuple without status", raw: `[{"success":true}]`, status: 200, wantStatus: 200, wantOK: true},
		{name: "nested error object", raw: `{"success":false,"error":{"message":"nope"}}`, status: 200, wantStatus: 200, wantError: "nope"},
		{name: "no success flag", raw: `{"data":1}`, status: 204, wantStatus: 204, wantOK: true},
		{name: "empty body", raw: ``, status: 502, wantStatus: 502, wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Normalize([]byte(tc.raw), tc.status)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, env.Status)
			assert.Equal(t, tc.wantOK, env.OK())
			assert.Equal(t, tc.wantError, env.FailureMessage())
		})
	}
}

func TestNormalizeRejectsMalformedJSON(t *testing.T) {
	_, err := Normalize([]byte(`{"success":`), 200)
	require.Error(t, err)
}

func TestSessionFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.True(t, SessionFromRequest(req).Anonymous())

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", SessionFromRequest(req).Token)

	req.Header.Set("Authorization", "Basic abc")
	assert.True(t, SessionFromRequest(req).Anonymous())
}
