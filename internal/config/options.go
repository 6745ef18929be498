package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TemplateOptions is the typed view of the free-form template compiler
// options under compiler.options.template.
type TemplateOptions struct {
	// PreserveWhitespace keeps insignificant whitespace in compiled output.
	PreserveWhitespace bool `mapstructure:"preserve_whitespace"`
	// Pretty disables output minification for easier debugging.
	Pretty bool `mapstructure:"pretty"`
	// CompilerFlags is passed through to the external compiler untouched.
	CompilerFlags map[string]interface{} `mapstructure:"compiler_flags"`
}

// StyleOptions is the typed view of the free-form style compiler options
// under compiler.options.style.
type StyleOptions struct {
	// Minify minifies compiled CSS output.
	Minify bool `mapstructure:"minify"`
	// PreprocessorOptions is passed to the style preprocessor untouched.
	PreprocessorOptions map[string]interface{} `mapstructure:"preprocessor_options"`
}

// TemplateOptions decodes the template section of the compiler option map.
// A missing section yields the zero value.
func (c CompilerConfig) TemplateOptions() (TemplateOptions, error) {
	var opts TemplateOptions
	raw, ok := c.Options["template"]
	if !ok {
		return opts, nil
	}
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return opts, fmt.Errorf("decoding compiler template options: %w", err)
	}
	return opts, nil
}

// StyleOptions decodes the style section of the compiler option map.
// A missing section yields the zero value.
func (c CompilerConfig) StyleOptions() (StyleOptions, error) {
	var opts StyleOptions
	raw, ok := c.Options["style"]
	if !ok {
		return opts, nil
	}
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return opts, fmt.Errorf("decoding compiler style options: %w", err)
	}
	return opts, nil
}
