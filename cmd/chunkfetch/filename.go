package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/chunkfetch/pkg/disposition"
)

// runFilename parses a Content-Disposition value given as argument and
// prints its filename, or with -json the whole parsed value.
func runFilename(args []string) int {
	fs := flag.NewFlagSet("filename", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the parsed type and parameters as JSON")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: chunkfetch filename [options] <header-value>

Extract the filename from a Content-Disposition header value.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one header value is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	v, err := disposition.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidHeader
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
		return ExitSuccess
	}

	name, ok := disposition.Filename(v)
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: header carries no filename")
		return ExitGeneralError
	}
	fmt.Fprintln(stdout, name)
	return ExitSuccess
}
