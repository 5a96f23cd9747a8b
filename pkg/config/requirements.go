// pkg/config/requirements.go

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

var (
	// ErrConfigNotFound is returned when the config file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidNodeType is returned for an unknown --node value.
	ErrInvalidNodeType = errors.New("invalid node type")

	// ErrInvalidValue is returned when a key cannot be parsed.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Configuration keys.
const (
	KeySupportedOS     = "supported_os"
	KeyLocale          = "locale"
	KeyVCPUs           = "vcpus"
	KeyMemoryGB        = "memory_gb"
	KeyDataMount       = "data_mount"
	KeyDataMinFreeGB   = "data_min_free_gb"
	KeyRootMinFreeGB   = "root_min_free_gb"
	KeyTmpMinFreeGB    = "tmp_min_free_gb"
	KeyFilesystemTypes = "filesystem_types"
	KeyLimitsUser      = "limits_user"
	KeyOpenFiles       = "open_files"
	KeyMaxProcesses    = "max_processes"
	KeyRequiredHosts   = "required_hosts"
	KeyInternetURL     = "internet_url"
	KeyTimeSync        = "time_sync"
	KeyPackages        = "packages"
	KeyRepositories    = "repositories"
	KeyJavaVersions    = "java_versions"
)

// DefaultLimitsUser is the limits domain checked when limits_user is unset.
const DefaultLimitsUser = "*"

// Requirements is the resolved requirement set for one node profile. A zero
// or empty field means the requirement is not checked.
type Requirements struct {
	Path string
	Node NodeType
	// ProfileFound is false when the node has no section of its own.
	ProfileFound bool

	SupportedOS []string
	Locale      string

	VCPUs    int
	MemoryGB float64

	DataMount       string
	DataMinFreeGB   float64
	RootMinFreeGB   float64
	TmpMinFreeGB    float64
	FilesystemTypes []string

	LimitsUser   string
	OpenFiles    int
	MaxProcesses int

	RequiredHosts []string
	InternetURL   string
	TimeSync      bool

	Packages     []string
	Repositories []string
	JavaVersions []string

	settings []Setting
}

// Setting is one resolved key and the section it came from.
type Setting struct {
	Key     string
	Value   string
	Section string
}

// Load reads path and resolves the requirements of node: keys in the
// node's section win over [DEFAULT].
func Load(path string, node NodeType) (*Requirements, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to access config file %s: %w", path, err)
	}

	// Only keys fold case. Folding section names would turn [DEFAULT] into
	// an ordinary section named "default".
	cfg, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	r := &resolver{defaults: cfg.Section(ini.DefaultSection)}
	if node != NodeDefault {
		r.profile = findSection(cfg, string(node))
	}

	req := &Requirements{
		Path:         path,
		Node:         node,
		ProfileFound: node == NodeDefault || r.profile != nil,
	}
	req.SupportedOS = r.list(KeySupportedOS)
	req.Locale = r.str(KeyLocale)
	req.VCPUs = r.int(KeyVCPUs)
	req.MemoryGB = r.float(KeyMemoryGB)
	req.DataMount = r.str(KeyDataMount)
	req.DataMinFreeGB = r.float(KeyDataMinFreeGB)
	req.RootMinFreeGB = r.float(KeyRootMinFreeGB)
	req.TmpMinFreeGB = r.float(KeyTmpMinFreeGB)
	req.FilesystemTypes = r.list(KeyFilesystemTypes)
	req.LimitsUser = r.str(KeyLimitsUser)
	if req.LimitsUser == "" {
		req.LimitsUser = DefaultLimitsUser
	}
	req.OpenFiles = r.int(KeyOpenFiles)
	req.MaxProcesses = r.int(KeyMaxProcesses)
	req.RequiredHosts = r.list(KeyRequiredHosts)
	req.InternetURL = r.str(KeyInternetURL)
	req.TimeSync = r.bool(KeyTimeSync)
	req.Packages = r.list(KeyPackages)
	req.Repositories = r.list(KeyRepositories)
	req.JavaVersions = r.list(KeyJavaVersions)

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	sort.Slice(r.settings, func(i, j int) bool { return r.settings[i].Key < r.settings[j].Key })
	req.settings = r.settings
	return req, nil
}

// Settings returns every key that was set, sorted by key.
func (r *Requirements) Settings() []Setting {
	return append([]Setting(nil), r.settings...)
}

// findSection returns the section called name, ignoring case.
func findSection(cfg *ini.File, name string) *ini.Section {
	for _, sec := range cfg.Sections() {
		if sec.Name() != ini.DefaultSection && strings.EqualFold(sec.Name(), name) {
			return sec
		}
	}
	return nil
}

// resolver looks keys up in the profile section, then in DEFAULT.
type resolver struct {
	profile  *ini.Section
	defaults *ini.Section
	settings []Setting
	errs     []error
}

func (r *resolver) key(name string) *ini.Key {
	for _, sec := range []*ini.Section{r.profile, r.defaults} {
		if sec != nil && sec.HasKey(name) {
			k := sec.Key(name)
			r.settings = append(r.settings, Setting{Key: name, Value: k.String(), Section: strings.ToUpper(sec.Name())})
			return k
		}
	}
	return nil
}

func (r *resolver) invalid(k *ini.Key, want string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s = %q is not %s: %v", ErrInvalidValue, k.Name(), k.String(), want, err))
}

func (r *resolver) str(name string) string {
	k := r.key(name)
	if k == nil {
		return ""
	}
	return strings.TrimSpace(k.String())
}

func (r *resolver) list(name string) []string {
	k := r.key(name)
	if k == nil {
		return nil
	}
	var out []string
	for _, item := range strings.Split(k.String(), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (r *resolver) int(name string) int {
	k := r.key(name)
	if k == nil || strings.TrimSpace(k.String()) == "" {
		return 0
	}
	v, err := k.Int()
	if err != nil || v < 0 {
		if err == nil {
			err = errors.New("negative")
		}
		r.invalid(k, "a non-negative integer", err)
		return 0
	}
	return v
}

func (r *resolver) float(name string) float64 {
	k := r.key(name)
	if k == nil || strings.TrimSpace(k.String()) == "" {
		return 0
	}
	v, err := k.Float64()
	if err != nil || v < 0 {
		if err == nil {
			err = errors.New("negative")
		}
		r.invalid(k, "a non-negative number", err)
		return 0
	}
	return v
}

func (r *resolver) bool(name string) bool {
	k := r.key(name)
	if k == nil || strings.TrimSpace(k.String()) == "" {
		return false
	}
	v, err := k.Bool()
	if err != nil {
		r.invalid(k, "a boolean", err)
		return false
	}
	return v
}
