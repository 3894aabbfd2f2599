/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo provides information about the library build.
package libinfo

import (
	"debug/buildinfo"
	"regexp"
	"runtime/debug"
	"sync"
)

const libShortName = "orangeslice-go"

const moduleName = "github.com/orangeslice/" + libShortName

const develVersion = "v0.0.0"

var libVersion string
var libVersionOnce sync.Once

// GetLibVersion returns the version of the library module the binary is built with.
func GetLibVersion() string {
	libVersionOnce.Do(initLibVersion)
	return libVersion
}

// UserAgent returns the default User-Agent of HTTP requests (e.g. "orangeslice-go/v1.2.0").
func UserAgent() string {
	return libShortName + "/" + GetLibVersion()
}

func initLibVersion() {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		libVersion = extractLibVersion(buildInfo, moduleName)
	}
	if libVersion == "" {
		libVersion = develVersion
	}
}

// extractLibVersion extracts the version of the given module from the build info.
// The module is looked up among dependencies and then as the main module (e.g. when the CLI of this module is built).
// It expects the module name to be in the form "moduleName" or "moduleName/vX" where X is a major version number.
func extractLibVersion(buildInfo *buildinfo.BuildInfo, modName string) string {
	if buildInfo == nil {
		return ""
	}
	re, err := regexp.Compile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	if err != nil {
		return "" // should never happen
	}
	for _, dep := range buildInfo.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	if re.MatchString(buildInfo.Main.Path) && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}
	return ""
}
