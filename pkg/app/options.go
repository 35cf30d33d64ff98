package app

import "github.com/spf13/pflag"

// CliOptions is implemented by the options struct an App loads. Flags are
// registered on the root command; Complete runs before Validate after the
// config file and environment were applied.
type CliOptions interface {
	AddFlags(fs *pflag.FlagSet)
	Complete() error
	Validate() error
}

// PrintableOptions is implemented by options that can render themselves
// with secrets redacted.
type PrintableOptions interface {
	String() string
}
