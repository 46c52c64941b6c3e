package check

import (
	"regexp"
	"strings"

	"github.com/cgast/envcheck/pkg/requirement"
	"github.com/cgast/envcheck/pkg/size"
	"github.com/cgast/envcheck/pkg/version"
)

var (
	// phpinfo renders spaces as &nbsp; in HTML mode and as plain spaces on the CLI.
	ionCubePattern   = regexp.MustCompile(`ionCube(?:&nbsp;| )PHP(?:&nbsp;| )Loader(?:&nbsp;| )v([0-9.]+)`)
	gdVersionPattern = regexp.MustCompile(`[0-9.]+`)
)

// DefaultRegistry returns the built-in overrides for requirements the
// generic extension/function/setting lookup cannot answer.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("php", Handler{Probe: probePHP})
	r.MustRegister("ionCubeLoader", Handler{Probe: probeIonCubeLoader})
	r.MustRegister("curl", Handler{Probe: probeCurl})
	r.MustRegister("libxml", Handler{Probe: probeLibXML})
	r.MustRegister("gd", Handler{Probe: probeGD})
	r.MustRegister("gd_jpg", Handler{Probe: probeGDJpg})
	r.MustRegister("freetype", Handler{Probe: probeFreetype})
	r.MustRegister("session_save_path", Handler{Probe: probeSessionSavePath})
	r.MustRegister("magic_quotes", Handler{Probe: probeMagicQuotes})
	r.MustRegister("disk_free_space", Handler{Probe: probeDiskFreeSpace})
	r.MustRegister("include_path", Handler{Probe: probeIncludePath})
	r.MustRegister("max_execution_time", Handler{Compare: CompareMaxExecutionTime})
	r.MustRegister("memory_limit", Handler{Compare: CompareMemoryLimit})
	return r
}

// probePHP reports the runtime version without a pre-release suffix.
func probePHP(rt Runtime) requirement.Value {
	v := rt.Version()
	if i := strings.Index(v, "-"); i > 0 {
		v = v[:i]
	}
	return requirement.String(v)
}

func probeIonCubeLoader(rt Runtime) requirement.Value {
	if !rt.ExtensionLoaded("ionCube Loader") {
		return requirement.Bool(false)
	}
	if m := ionCubePattern.FindStringSubmatch(rt.Info()); m != nil {
		return requirement.String(m[1])
	}
	return requirement.Bool(false)
}

func probeCurl(rt Runtime) requirement.Value {
	if v, ok := rt.CurlVersion(); ok {
		return requirement.String(v)
	}
	return requirement.Bool(rt.FunctionExists("curl_init"))
}

func probeLibXML(rt Runtime) requirement.Value {
	if v, ok := rt.Constant("LIBXML_DOTTED_VERSION"); ok {
		return requirement.String(v)
	}
	return requirement.Bool(false)
}

// probeGD normalizes "bundled (2.1 compatible)" style strings to a
// three-part version.
func probeGD(rt Runtime) requirement.Value {
	info, ok := rt.GDInfo()
	if !ok {
		return requirement.Bool(false)
	}
	raw := info["GD Version"]
	m := gdVersionPattern.FindString(raw)
	if m == "" {
		return requirement.String(raw)
	}
	if strings.Count(m, ".") == 1 {
		m += ".0"
	}
	return requirement.String(m)
}

func probeGDJpg(rt Runtime) requirement.Value {
	info, ok := rt.GDInfo()
	if !ok {
		return requirement.Bool(false)
	}
	return requirement.Bool(requirement.TruthyString(info["JPEG Support"]) || requirement.TruthyString(info["JPG Support"]))
}

func probeFreetype(rt Runtime) requirement.Value {
	info, ok := rt.GDInfo()
	if !ok {
		return requirement.Bool(false)
	}
	return requirement.Bool(requirement.TruthyString(info["FreeType Support"]))
}

func probeSessionSavePath(rt Runtime) requirement.Value {
	if rt.FunctionExists("session_save_path") {
		return requirement.Bool(requirement.TruthyString(rt.SessionSavePath()))
	}
	v, _ := rt.Setting("session.save_path")
	return requirement.Bool(requirement.TruthyString(v))
}

// probeMagicQuotes is true when either legacy input auto-escaping switch is on.
func probeMagicQuotes(rt Runtime) requirement.Value {
	for _, name := range []string{"magic_quotes_gpc", "magic_quotes_runtime"} {
		if !rt.FunctionExists("get_" + name) {
			continue
		}
		if v, ok := rt.Setting(name); ok && settingEnabled(v) {
			return requirement.Bool(true)
		}
	}
	return requirement.Bool(false)
}

func probeDiskFreeSpace(rt Runtime) requirement.Value {
	free, ok := rt.DiskFreeSpace()
	if !ok {
		return requirement.Bool(false)
	}
	return requirement.String(size.EncodeSize(free))
}

func probeIncludePath(rt Runtime) requirement.Value {
	return requirement.Bool(rt.IncludePathExtendable())
}

// CompareMaxExecutionTime treats an empty or zero limit as unlimited.
func CompareMaxExecutionTime(probed requirement.Value, required string) bool {
	if !probed.Truthy() {
		return true
	}
	return version.LessOrEqual(required, probed.String())
}

// CompareMemoryLimit treats -1 as unlimited and otherwise compares sizes.
func CompareMemoryLimit(probed requirement.Value, required string) bool {
	if strings.TrimSpace(probed.String()) == "-1" {
		return true
	}
	return compareGeneric(probed, required)
}

// settingEnabled mirrors the runtime's handling of ini switches.
func settingEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes", "true":
		return true
	}
	return requirement.TruthyString(v)
}
