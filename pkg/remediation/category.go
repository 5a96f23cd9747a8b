// pkg/remediation/category.go

package remediation

import (
	"strconv"
	"strings"
)

// Category identifies a class of automatic fix.
type Category int

const (
	// None means the check has no automatic fix registered.
	None Category = iota

	// Locale generates and activates the required system locale.
	Locale

	// Ulimits rewrites the limits configuration entry for the install user.
	Ulimits

	// Packages installs missing packages with the host package manager.
	Packages

	// Repositories enables named package repositories.
	Repositories

	// Java installs a runtime matching one of the acceptable versions.
	Java

	// TimeSync enables and starts a time synchronisation service.
	TimeSync

	// Software is the composite fix for the software check. It runs the
	// packages, repositories and java routines in that order.
	Software

	// Unknown is any category string that could not be recognised.
	Unknown
)

var categoryNames = map[Category]string{
	None:         "none",
	Locale:       "locale",
	Ulimits:      "ulimits",
	Packages:     "packages",
	Repositories: "repositories",
	Java:         "java",
	TimeSync:     "time_sync",
	Software:     "software",
	Unknown:      "unknown",
}

// String returns the configuration name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCategory maps a user supplied string to a Category. Anything that is
// not a known name, including the empty string, is Unknown.
func ParseCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	if s == "timesync" {
		s = "time_sync"
	}
	for c, name := range categoryNames {
		if c == None || c == Unknown {
			continue
		}
		if name == s {
			return c
		}
	}
	return Unknown
}

// ImpliesReboot reports whether a successful fix of this category only takes
// full effect in a fresh session.
func (c Category) ImpliesReboot() bool {
	return c == Locale || c == Ulimits
}

// softwareOrder is the fixed order of the composite software routine.
// Package and repository fixes can unblock dependency resolution for the
// java install.
var softwareOrder = []Category{Packages, Repositories, Java}

// Request is a single remediation order. Params are positional and
// specific to the category:
//
//	locale        [locale]
//	ulimits       [open files, max processes, user (optional, default "*")]
//	packages      package names
//	repositories  repository ids
//	java          acceptable versions
//	time_sync     none
type Request struct {
	Category Category
	Params   []string
}

// LocaleRequest builds a locale fix request.
func LocaleRequest(locale string) Request {
	return Request{Category: Locale, Params: []string{locale}}
}

// UlimitsRequest builds a limits fix request for user.
func UlimitsRequest(openFiles, maxProcesses int, user string) Request {
	params := []string{strconv.Itoa(openFiles), strconv.Itoa(maxProcesses)}
	if user != "" {
		params = append(params, user)
	}
	return Request{Category: Ulimits, Params: params}
}

// PackagesRequest builds a package install request.
func PackagesRequest(names ...string) Request {
	return Request{Category: Packages, Params: names}
}

// RepositoriesRequest builds a repository enable request.
func RepositoriesRequest(ids ...string) Request {
	return Request{Category: Repositories, Params: ids}
}

// JavaRequest builds a java runtime install request.
func JavaRequest(versions ...string) Request {
	return Request{Category: Java, Params: versions}
}

// TimeSyncRequest builds a time sync enable request.
func TimeSyncRequest() Request {
	return Request{Category: TimeSync}
}

// String renders the request for logs and prompts.
func (r Request) String() string {
	if len(r.Params) == 0 {
		return r.Category.String()
	}
	return r.Category.String() + " " + strings.Join(r.Params, ",")
}
