package ui

import (
	"fmt"
	"io"
	"os"
)

// Banner printed by interactive commands
const Banner = `
  _                           _      _
 | |__  _   _ _ __   ___ _ __| |_ __(_)_   _____
 | '_ \| | | | '_ \ / _ \ '__| __/ _| \ \ / / _ \
 | | | | |_| | |_) |  __/ |  | || (_| |\ V /  __/
 |_| |_|\__, | .__/ \___|_|   \__\__,_| \_/ \___|
        |___/|_|
`

// Out receives all terminal output
var Out io.Writer = os.Stdout

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the banner in cyan
func PrintBanner() {
	fmt.Fprint(Out, Cyan(Banner))
}

// PrintError prints an error message in red, with an optional detail
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		fmt.Fprintln(Out, Red(msg+": "+fmt.Sprint(args[0])))
		return
	}
	fmt.Fprintln(Out, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Out, Yellow(msg+": "+fmt.Sprint(args[0])))
		return
	}
	fmt.Fprintln(Out, Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Out, Magenta(msg))
}
