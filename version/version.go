package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
)

// validCharacters is a list of characters valid in the build metadata
const validCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// vcsRevisionLength is how much of the commit hash goes in the build
// metadata when appBuild is not set.
const vcsRevisionLength = 12

// appBuild is defined as a variable so it can be overridden during the build
// process with '-ldflags "-X github.com/tinycrypto/ledgerd/version.appBuild=foo"' if needed.
// It MUST only contain characters from validCharacters.
var appBuild string

var (
	version     string
	versionOnce sync.Once
)

// Version returns the application version as a properly formed string.
// The build metadata is appBuild if set, or else the commit the binary was
// built from.
func Version() string {
	versionOnce.Do(func() {
		version = fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)

		build := appBuild
		if build == "" {
			build = vcsRevision()
		}
		// The build metadata is not appended if it contains invalid characters.
		build = checkAppBuild(build)
		if build != "" {
			version = fmt.Sprintf("%s-%s", version, build)
		}
	})
	return version
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	revision := ""
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if len(revision) > vcsRevisionLength {
		revision = revision[:vcsRevisionLength]
	}
	if revision != "" && modified {
		revision += "-dirty"
	}
	return revision
}

// checkAppBuild returns the passed string unless it contains any characters not in validCharacters
// If any invalid characters are encountered - an empty string is returned
func checkAppBuild(str string) string {
	for _, r := range str {
		if !strings.ContainsRune(validCharacters, r) {
			return ""
		}
	}
	return str
}
