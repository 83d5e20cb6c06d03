// Package version reports the versions of the array API, this
// implementation and the libraries it is built on. Nominal use is for bug
// reports.
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// Version is set at build time with
// -ldflags "-X github.com/ajitpratap0/arraystore/pkg/version.Version=v0.3.0".
var Version = ""

const modulePath = "github.com/ajitpratap0/arraystore"

// APIVersion returns the semver of the supported array API.
func APIVersion() string {
	return "0.2.0-dev"
}

// Implementation returns the implementation name.
func Implementation() string {
	return "go-arrow"
}

// ImplementationVersion returns the module version, or "unknown" when it
// was neither set at build time nor recorded in the build info.
func ImplementationVersion() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path == modulePath {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "unknown"
}

// StorageEngine returns the name of the fragment storage engine.
func StorageEngine() string {
	return "arrow-go"
}

// dependencyVersion returns the version of module path in the build info.
func dependencyVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return "unknown"
}

// Show writes implementation, engine and runtime versions to w.
func Show(w io.Writer) error {
	lines := [][2]string{
		{"arraystore", ImplementationVersion()},
		{"api", APIVersion()},
		{"implementation", Implementation()},
		{"storage engine", StorageEngine() + " " + dependencyVersion("github.com/apache/arrow-go/v18")},
		{"go", runtime.Version()},
		{"os/arch", runtime.GOOS + "/" + runtime.GOARCH},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-16s %s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	return nil
}
