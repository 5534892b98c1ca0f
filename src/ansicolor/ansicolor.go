// Package ansicolor holds the terminal escape codes used by the pretty log writer.
package ansicolor

import (
	"os"
	"runtime"
)

var (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Faint = "\033[2m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Gray   = "\033[37m"

	BgRed    = "\033[41m"
	BgGreen  = "\033[42m"
	BgYellow = "\033[43m"
	BgBlue   = "\033[44m"
)

func init() {
	if runtime.GOOS == "windows" || os.Getenv("NO_COLOR") != "" {
		Disable()
	}
}

// Disable blanks every code so output is plain text.
func Disable() {
	for _, c := range []*string{&Reset, &Bold, &Faint, &Red, &Green, &Yellow, &Blue, &Gray, &BgRed, &BgGreen, &BgYellow, &BgBlue} {
		*c = ""
	}
}
