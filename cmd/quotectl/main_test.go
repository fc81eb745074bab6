package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/angelmondragon/quoteflow/pkg/enums"
)

func runApp(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"quotectl"}, args...))
	var decoded map[string]any
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	}
	return decoded, err
}

func TestVINCommand(t *testing.T) {
	out, err := runApp(t, "vin", " 1hgcm82633a004352 ")
	require.NoError(t, err)
	assert.Equal(t, "1HGCM82633A004352", out["vin"])
	assert.Equal(t, true, out["valid"])

	out, err = runApp(t, "vin", "1HGCM82633A00435O")
	require.NoError(t, err)
	assert.Equal(t, false, out["valid"])
}

func TestVINCommandRequiresArgument(t *testing.T) {
	_, err := runApp(t, "vin")
	assert.Error(t, err)
}

func TestCardCommand(t *testing.T) {
	out, err := runApp(t, "card", "--number", "4111 1111 1111 1111", "--cvv", "123", "--exp-month", "12", "--exp-year", "2099")
	require.NoError(t, err)
	assert.Equal(t, "1111", out["last4"])
	assert.Equal(t, true, out["number_valid"])
	assert.Equal(t, true, out["cvv_valid"])
	assert.Equal(t, true, out["expiry_valid"])

	out, err = runApp(t, "card", "--number", "4111111111111112")
	require.NoError(t, err)
	assert.Equal(t, false, out["number_valid"])
	assert.NotContains(t, out, "cvv_valid")
}

func TestEligibilityCommand(t *testing.T) {
	out, err := runApp(t, "eligibility", "--make", "honda", "--year", "2000", "--mileage", "210000", "--as-of", "2026-06-01")
	require.NoError(t, err)
	assert.Equal(t, false, out["eligible"])
	assert.Equal(t, float64(26), out["vehicle_age"])
	assert.Len(t, out["restrictions"], 2)

	out, err = runApp(t, "eligibility", "--make", "Toyota", "--year", "2022", "--mileage", "30000", "--as-of", "2026-06-01")
	require.NoError(t, err)
	assert.Equal(t, true, out["eligible"])
}

func TestQuoteValidateCommand(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "hero.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"product_type":"tire_wheel","term_years":3,"coverage_limit":1500,"customer_type":"retail"}`), 0o600))

	out, err := runApp(t, "quote", "validate", "--file", valid)
	require.NoError(t, err)
	assert.Equal(t, "hero", out["kind"])
	assert.Equal(t, true, out["valid"])

	invalid := filepath.Join(dir, "vsc.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"make":"Honda","coverage_level":"gold","year":2020,"term_months":36}`), 0o600))
	out, err = runApp(t, "quote", "validate", "-f", invalid)
	require.Error(t, err)
	assert.Equal(t, "vsc", out["kind"])
	assert.Equal(t, false, out["valid"])
	assert.Contains(t, out["errors"], "Vehicle model is required")
	assert.Contains(t, out["errors"], "Customer type is required")
}

func TestDecodeQuoteRequest(t *testing.T) {
	req, err := decodeQuoteRequest([]byte(`{"coverage_level":"gold"}`), "auto")
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteKindVSC, req.Kind)
	require.NotNil(t, req.VSC)

	req, err = decodeQuoteRequest([]byte(`{"coverage_level":"gold"}`), "hero")
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteKindHero, req.Kind)

	_, err = decodeQuoteRequest([]byte(`{}`), "boat")
	assert.Error(t, err)

	_, err = decodeQuoteRequest([]byte(`not json`), "auto")
	assert.Error(t, err)
}
