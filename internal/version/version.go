package version

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Set at build time with -ldflags "-X github.com/larsks/npsctl/internal/version.BuildVersion=..."
var (
	BuildVersion = "dev"
	BuildRef     = ""
	BuildDate    = ""
)

// Version returns the build version. Binaries installed with `go install`
// report the module version instead.
func Version() string {
	if BuildVersion != "dev" {
		return BuildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return BuildVersion
}

// Fprint writes version information to w
func Fprint(w io.Writer) {
	fmt.Fprintf(w, "version: %s\n", Version())
	if BuildRef != "" {
		fmt.Fprintf(w, "ref: %s\n", BuildRef)
	}
	if BuildDate != "" {
		fmt.Fprintf(w, "date: %s\n", BuildDate)
	}
}
