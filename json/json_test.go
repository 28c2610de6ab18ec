package json

import (
	"bytes"
	"strings"
	"testing"
)

type testOptions struct {
	Algorithm     string  `json:"algorithm" default:"none"`
	ProcessByHalf bool    `json:"process_by_half" default:"true"`
	MaxWidth      int     `json:"max_width" default:"800"`
	Quality       float64 `json:"quality" default:"0.5"`
}

func TestMarshalLeavesValueUntouched(t *testing.T) {
	opts := &testOptions{MaxWidth: 320}

	data, err := Marshal(opts)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	if opts.Algorithm != "" || opts.ProcessByHalf || opts.Quality != 0 {
		t.Fatalf("Marshal must not fill defaults, got %+v", opts)
	}
	want := `{"algorithm":"","process_by_half":false,"max_width":320,"quality":0}`
	if string(data) != want {
		t.Fatalf("Marshal = %s, want %s", data, want)
	}
}

func TestUnmarshalAppliesDefaultsForMissingFields(t *testing.T) {
	var opts testOptions
	if err := Unmarshal([]byte(`{"algorithm":"hermite"}`), &opts); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	if opts.Algorithm != "hermite" {
		t.Fatalf("expected algorithm from JSON, got %q", opts.Algorithm)
	}
	if !opts.ProcessByHalf {
		t.Fatalf("expected default ProcessByHalf=true")
	}
	if opts.MaxWidth != 800 {
		t.Fatalf("expected default MaxWidth=800, got %d", opts.MaxWidth)
	}
	if opts.Quality != 0.5 {
		t.Fatalf("expected default Quality=0.5, got %v", opts.Quality)
	}
}

func TestUnmarshalPreservesExplicitZeroValues(t *testing.T) {
	var opts testOptions
	input := []byte(`{"process_by_half":false,"quality":0,"max_width":0}`)
	if err := Unmarshal(input, &opts); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	if opts.ProcessByHalf {
		t.Fatalf("expected explicit ProcessByHalf=false to be preserved")
	}
	if opts.Quality != 0 {
		t.Fatalf("expected explicit Quality=0 to be preserved, got %v", opts.Quality)
	}
	if opts.MaxWidth != 0 {
		t.Fatalf("expected explicit MaxWidth=0 to be preserved, got %d", opts.MaxWidth)
	}
}

func TestUnmarshalIntoMap(t *testing.T) {
	var m map[string]any
	if err := Unmarshal([]byte(`{"width":3}`), &m); err != nil {
		t.Fatalf("Unmarshal into map failed: %v", err)
	}
	if m["width"] != float64(3) {
		t.Fatalf("expected width=3, got %v", m["width"])
	}
}

// TestDecoderDisallowUnknownFields 测试嵌入的 DisallowUnknownFields 方法
func TestDecoderDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder(strings.NewReader(`{"algorithm":"bilinear","lanczos":true}`))
	decoder.DisallowUnknownFields()

	var opts testOptions
	if err := decoder.Decode(&opts); err == nil {
		t.Fatal("expected error for unknown field, but got none")
	}
}

func TestDecoderAppliesDefaults(t *testing.T) {
	decoder := NewDecoder(strings.NewReader(`{"max_width":64}`))

	var opts testOptions
	if err := decoder.Decode(&opts); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if opts.MaxWidth != 64 || opts.Algorithm != "none" {
		t.Fatalf("unexpected decode result %+v", opts)
	}
}

// TestEncoderSetIndent 测试嵌入的 SetIndent 方法
func TestEncoderSetIndent(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(&testOptions{Algorithm: "hermite"}); err != nil {
		t.Fatalf("Encode with SetIndent failed: %v", err)
	}

	if !strings.Contains(buf.String(), "\n  \"algorithm\": \"hermite\"") {
		t.Fatalf("expected indented output, got: %s", buf.String())
	}
}
