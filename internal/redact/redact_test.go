package redact

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_MasksNestedKeys(t *testing.T) {
	f := New()

	in := map[string]any{
		"email": "jane@example.com",
		"password": "hunter2",
		"nested": map[string]any{
			"access_token": "tok-123",
			"profile": map[string]any{
				"given_name": "Jane",
				"Token":      "deep-secret",
			},
		},
		"items": []any{
			map[string]any{"client_secret": "s3cret", "id": "1"},
		},
	}

	out, ok := f.Value(in).(map[string]any)
	require.True(t, ok)

	assert.Equal(t, "jane@example.com", out["email"])
	assert.Equal(t, Mask, out["password"])

	nested := out["nested"].(map[string]any)
	assert.Equal(t, Mask, nested["access_token"])
	profile := nested["profile"].(map[string]any)
	assert.Equal(t, "Jane", profile["given_name"])
	assert.Equal(t, Mask, profile["Token"], "matching is case-insensitive")

	item := out["items"].([]any)[0].(map[string]any)
	assert.Equal(t, Mask, item["client_secret"])
	assert.Equal(t, "1", item["id"])

	// original value untouched
	assert.Equal(t, "hunter2", in["password"])
}

func TestValue_OriginalNeverRecoverable(t *testing.T) {
	f := New()
	in := map[string]any{
		"a": map[string]any{"b": []any{map[string]any{"password": "topsecret"}}},
	}
	raw, err := json.Marshal(f.Value(in))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "topsecret")
}

func TestString_JSONPayload(t *testing.T) {
	f := New()
	out := f.String(`{"sub":"u1","access_token":"abc123","email":"a@b.c"}`)
	assert.Contains(t, out, `"sub":"u1"`)
	assert.Contains(t, out, `"access_token":"*****"`)
	assert.NotContains(t, out, "abc123")
}

func TestString_FallsBackToForm(t *testing.T) {
	f := New()
	out := f.String("grant_type=authorization_code&code=xyz789&redirect_uri=https%3A%2F%2Fshop.example%2Freentry")
	assert.Contains(t, out, "grant_type=authorization_code\n")
	assert.Contains(t, out, "code="+Mask)
	assert.Contains(t, out, "redirect_uri=https://shop.example/reentry")
	assert.NotContains(t, out, "xyz789")
}

func TestForm_OnePairPerLine(t *testing.T) {
	f := New()
	out := f.Form("a=1&password=pw&b")
	lines := strings.Split(strings.Trim(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a=1", lines[0])
	assert.Equal(t, "password="+Mask, lines[1])
	assert.Equal(t, "b", lines[2])
}

func TestXML_MasksElementsAndCustomAttributes(t *testing.T) {
	f := New()
	in := `<order><password>pw</password><custom-attribute attribute-id="token">tok</custom-attribute><sku>A-1</sku></order>`
	out := f.XML(in)
	assert.NotContains(t, out, ">pw<")
	assert.NotContains(t, out, ">tok<")
	assert.Contains(t, out, "<password>"+MaskXML+"</password>")
	assert.Contains(t, out, `<custom-attribute attribute-id="token">`+MaskXML+`</custom-attribute>`)
	assert.Contains(t, out, "<sku>A-1</sku>")
}

func TestString_UnparseableNeverPanics(t *testing.T) {
	f := New()
	assert.NotPanics(t, func() {
		_ = f.String("")
		_ = f.String("%%%===&&&")
		_ = f.String("{broken json")
	})
}

func TestNew_CustomKeys(t *testing.T) {
	f := New("ssn")
	assert.True(t, f.Sensitive("SSN"))
	assert.False(t, f.Sensitive("password"))
}
