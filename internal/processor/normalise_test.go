package processor

import (
	"errors"
	"math"
	"testing"
)

func TestGainForTarget(t *testing.T) {
	p := New(DefaultLimits())

	tests := []struct {
		name    string
		current float64
		target  float64
		clamp   bool
		want    float64
	}{
		{"boost within range", -20, -14, true, 6.0},
		{"boost clamped", -30, -14, true, 12.0},
		{"boost unclamped", -30, -14, false, 16.0},
		{"cut within range", -10, -16, true, -6.0},
		{"cut clamped", -2, -23, true, -12.0},
		{"already on target", -16, -16, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.GainForTarget(tt.current, tt.target, tt.clamp)
			if !approxEqual(got, tt.want, 1e-9) {
				t.Errorf("GainForTarget(%v, %v, %v) = %v, want %v", tt.current, tt.target, tt.clamp, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	p := New(DefaultLimits())

	t.Run("explicit", func(t *testing.T) {
		res, err := p.Resolve(Explicit(3.5), -20)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if res.GainDB != 3.5 || res.Clamped {
			t.Errorf("Resolve(Explicit(3.5)) = %+v", res)
		}
	})

	t.Run("explicit out of range", func(t *testing.T) {
		if _, err := p.Resolve(Explicit(-15), -20); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Resolve(Explicit(-15)) error = %v, want ErrOutOfRange", err)
		}
	})

	t.Run("target reached", func(t *testing.T) {
		res, err := p.Resolve(Target(-14), -20)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if res.Clamped || !approxEqual(res.GainDB, 6, 1e-9) || res.Shortfall() != 0 {
			t.Errorf("Resolve(Target(-14)) = %+v", res)
		}
		if got := res.ExpectedLUFS(-20); !approxEqual(got, -14, 1e-9) {
			t.Errorf("ExpectedLUFS() = %v, want -14", got)
		}
	})

	t.Run("target clamped", func(t *testing.T) {
		res, err := p.Resolve(Target(-14), -30)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if !res.Clamped {
			t.Error("expected clamped resolution")
		}
		if res.GainDB != 12 || res.UnclampedDB != 16 {
			t.Errorf("GainDB = %v, UnclampedDB = %v, want 12 and 16", res.GainDB, res.UnclampedDB)
		}
		if got := res.Shortfall(); !approxEqual(got, 4, 1e-9) {
			t.Errorf("Shortfall() = %v, want 4", got)
		}
	})

	t.Run("target from silence", func(t *testing.T) {
		if _, err := p.Resolve(Target(-14), math.Inf(-1)); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Resolve() from -Inf error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestParseGainInput(t *testing.T) {
	tests := []struct {
		input   string
		want    GainSpec
		wantErr bool
	}{
		{"+3", Explicit(3), false},
		{"-2.5", Explicit(-2.5), false},
		{"  4 dB ", Explicit(4), false},
		{"", Explicit(0), false},
		{"-14 LUFS", Target(-14), false},
		{"-14lufs", Target(-14), false},
		{"-9.5 Lufs", Target(-9.5), false},
		{"loud", GainSpec{}, true},
		{"abc LUFS", GainSpec{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseGainInput(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("ParseGainInput(%q) error = %v, want ErrInvalidArgument", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGainInput(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseGainInput(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewProcessingRequest(t *testing.T) {
	gain := 3.0
	target := -16.0

	if _, err := NewProcessingRequest(&gain, &target, false, -0.3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("both set: error = %v, want ErrInvalidArgument", err)
	}
	if _, err := NewProcessingRequest(nil, nil, false, -0.3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("neither set: error = %v, want ErrInvalidArgument", err)
	}

	req, err := NewProcessingRequest(nil, &target, true, -1)
	if err != nil {
		t.Fatalf("NewProcessingRequest() error: %v", err)
	}
	if !req.Gain.IsTarget() || req.Gain.Value() != -16 {
		t.Errorf("Gain = %v, want target -16", req.Gain)
	}

	opts := req.Options(Resolution{GainDB: 2})
	if opts.GainDB != 2 || !opts.Clip || opts.ClipThresholdDBFS != -1 {
		t.Errorf("Options() = %+v", opts)
	}
}

func TestGainSpecString(t *testing.T) {
	if got := Explicit(3).String(); got != "+3.0 dB" {
		t.Errorf("Explicit(3).String() = %q", got)
	}
	if got := Target(-14).String(); got != "target -14.0 LUFS" {
		t.Errorf("Target(-14).String() = %q", got)
	}
}
