package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// Output formats
const (
	FormatTable = "table"
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// AddOutputFlag adds a validated --output/-o flag to cmd.
func AddOutputFlag(cmd *cobra.Command, target *string, def string, formats ...string) {
	cmd.Flags().StringVarP(target, "output", "o", def, fmt.Sprintf("output format %v", formats))
	AddFlagValidation(cmd, "output", func(format string) error {
		return ValidateFormatWithSuggestion(format, formats)
	})
}

// AddFlagValidation makes flagName run validator before accepting a value.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// ValidateFormatWithSuggestion rejects formats outside valid, suggesting
// the closest one.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}
	msg := fmt.Sprintf("invalid format %q (supported: %v)", format, valid)
	if hint := uierrors.DidYouMean(format, valid); hint != "" {
		msg += ", " + hint
	}
	return fmt.Errorf("%s", msg)
}

// ValidatePort checks a port number given as text.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateFileExists accepts "" for optional files.
func ValidateFileExists(filename string) error {
	if filename == "" {
		return nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}
	return nil
}
