package ports

import (
	"testing"

	"gotest.tools/assert"
)

func TestParseAllowList(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		expected  []uint16
		expectErr bool
	}{
		{name: "empty defaults to 22", input: nil, expected: []uint16{22}},
		{name: "blank string", input: []string{""}, expected: []uint16{22}},
		{name: "single", input: []string{"8080"}, expected: []uint16{8080}},
		{name: "comma list", input: []string{"22, 80,443"}, expected: []uint16{22, 80, 443}},
		{name: "repeated flags", input: []string{"443", "22"}, expected: []uint16{22, 443}},
		{name: "range", input: []string{"8000-8003"}, expected: []uint16{8000, 8001, 8002, 8003}},
		{name: "duplicates", input: []string{"22,22,8000-8001,8001"}, expected: []uint16{22, 8000, 8001}},
		{name: "too large", input: []string{"70000"}, expectErr: true},
		{name: "zero", input: []string{"0"}, expectErr: true},
		{name: "reversed range", input: []string{"9000-8000"}, expectErr: true},
		{name: "not a number", input: []string{"ssh"}, expectErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, err := ParseAllowList(test.input...)
			if test.expectErr {
				assert.Assert(t, err != nil)
				return
			}
			assert.NilError(t, err)
			assert.DeepEqual(t, a.Ports(), test.expected)
		})
	}
}

func TestAuthorize(t *testing.T) {
	a := NewAllowList(22, 8080)
	assert.Assert(t, a.Authorize(22))
	assert.Assert(t, a.Authorize(8080))
	assert.Assert(t, !a.Authorize(80))
	assert.Assert(t, !a.Authorize(0))
	assert.Equal(t, a.String(), "22,8080")

	var none *AllowList
	assert.Assert(t, !none.Authorize(22))
}

func TestPortsIsACopy(t *testing.T) {
	a := NewAllowList(22)
	p := a.Ports()
	p[0] = 80
	assert.Assert(t, a.Authorize(22))
	assert.Assert(t, !a.Authorize(80))
}
