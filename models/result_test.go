package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in   string
		want Dimension
	}{
		{"640", Px(640)},
		{"  480 ", Px(480)},
		{"+12", Px(12)},
		{"640px", Px(640)},
		{"480.5", Px(480)},
		{"0", Px(0)},
		{"-0", Px(0)},
		{"0x10", Px(16)},
		{"0XfF", Px(255)},
		{"0x1g", Px(1)},
		{"0x", Dimension{}},
		{"99999999999999999999", Px(math.MaxInt)},
		{"0xffffffffffffffffffff", Px(math.MaxInt)},
		{"-1", Dimension{}},
		{"", Dimension{}},
		{"wide", Dimension{}},
		{"+", Dimension{}},
		{"ff", Dimension{}},
	}
	for _, tt := range tests {
		if got := ParseDimension(tt.in); got != tt.want {
			t.Errorf("ParseDimension(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestDimension_JSON(t *testing.T) {
	b, err := json.Marshal([]Dimension{Px(7), ParseDimension("x")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[7,null]" {
		t.Errorf("json = %s", b)
	}

	var back []Dimension
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back[0] != Px(7) || back[1].Valid {
		t.Errorf("decoded = %+v", back)
	}
}
