package resizer

import (
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	validatorV10 "github.com/go-playground/validator/v10"

	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/sizing"
)

// Algorithm selects the kernel that takes the buffer to its exact target size.
type Algorithm string

const (
	AlgorithmBilinear      Algorithm = "bilinear"
	AlgorithmHermite       Algorithm = "hermite"
	AlgorithmHermiteSingle Algorithm = "hermite_single"
	AlgorithmNone          Algorithm = "none"
)

// ParseAlgorithm maps a configuration value onto an Algorithm. "null" and
// the empty string select AlgorithmNone.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bilinear":
		return AlgorithmBilinear, nil
	case "hermite":
		return AlgorithmHermite, nil
	case "hermite_single":
		return AlgorithmHermiteSingle, nil
	case "none", "null", "":
		return AlgorithmNone, nil
	default:
		return "", errors.Newf(errors.ErrorTypeInvalidConfig, "unknown algorithm %q", s).
			WithDetail("algorithm", s)
	}
}

// RawMimeType selects the decoded buffer as output instead of an encoded
// artifact. The empty string does the same.
const RawMimeType = "raw"

// Config is the per-call resize configuration. It is never mutated by the
// pipeline.
type Config struct {
	Algorithm     Algorithm `mapstructure:"algorithm" json:"algorithm" yaml:"algorithm" default:"none"`
	ProcessByHalf bool      `mapstructure:"process_by_half" json:"process_by_half" yaml:"process_by_half" default:"true"`
	MaxWidth      int       `mapstructure:"max_width" json:"max_width" yaml:"max_width" default:"800" validate:"gte=1"`
	MaxHeight     int       `mapstructure:"max_height" json:"max_height" yaml:"max_height" default:"600" validate:"gte=1"`
	// MaxSizeKB bounds the output to MaxSizeKB*1000 pixels. Zero is unset.
	MaxSizeKB int `mapstructure:"max_size_kb" json:"max_size_kb" yaml:"max_size_kb" validate:"gte=0"`
	// ScaleRatio caps the output width at ScaleRatio*source width. Zero is unset.
	ScaleRatio float64 `mapstructure:"scale_ratio" json:"scale_ratio" yaml:"scale_ratio" validate:"gte=0,lte=1"`
	// PixelCeiling is the largest surface, in pixels, the target platform can
	// draw. Zero means unconstrained; sizing.WebKitPixelCeiling models iOS.
	PixelCeiling int     `mapstructure:"pixel_ceiling" json:"pixel_ceiling" yaml:"pixel_ceiling" validate:"gte=0"`
	Debug        bool    `mapstructure:"debug" json:"debug" yaml:"debug"`
	Quality      float64 `mapstructure:"quality" json:"quality" yaml:"quality" default:"0.5" validate:"gte=0,lte=1"`
	MimeType     string  `mapstructure:"mime_type" json:"mime_type" yaml:"mime_type" default:"image/jpeg"`
}

// DefaultConfig returns the configuration used when a field is not set.
func DefaultConfig() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("resizer: default config: %v", err))
	}
	return cfg
}

var validate = validatorV10.New()

// Validate checks field ranges and the algorithm name.
func (c Config) Validate() error {
	if _, err := ParseAlgorithm(string(c.Algorithm)); err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validatorV10.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.Newf(errors.ErrorTypeInvalidConfig, "%s %s", fe.Field(), validationMessage(fe)).
				WithDetail("field", fe.Field()).
				WithDetail("value", fe.Value())
		}
		return errors.WrapWithType(err, errors.ErrorTypeInvalidConfig, "validate config")
	}
	return nil
}

// Encodes reports whether the result is an encoded artifact rather than the
// raw buffer.
func (c Config) Encodes() bool {
	return c.MimeType != "" && c.MimeType != RawMimeType
}

// Constraints returns the sizing constraints carried by c.
func (c Config) Constraints() sizing.Constraints {
	return sizing.Constraints{
		MaxWidth:     c.MaxWidth,
		MaxHeight:    c.MaxHeight,
		MaxSizeKB:    c.MaxSizeKB,
		ScaleRatio:   c.ScaleRatio,
		PixelCeiling: c.PixelCeiling,
	}
}

func validationMessage(fe validatorV10.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}
