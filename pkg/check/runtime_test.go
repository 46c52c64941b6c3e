package check

import "strings"

// fakeRuntime answers from fixed tables and counts every lookup.
type fakeRuntime struct {
	version     string
	extensions  map[string]bool
	functions   map[string]bool
	settings    map[string]string
	constants   map[string]string
	info        string
	gd          map[string]string
	curl        string
	sessionPath string
	includePath bool
	diskFree    float64
	diskKnown   bool

	calls int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		extensions: map[string]bool{},
		functions:  map[string]bool{},
		settings:   map[string]string{},
		constants:  map[string]string{},
	}
}

func (f *fakeRuntime) Version() string {
	f.calls++
	return f.version
}

func (f *fakeRuntime) ExtensionLoaded(name string) bool {
	f.calls++
	return f.extensions[strings.ToLower(name)]
}

func (f *fakeRuntime) FunctionExists(name string) bool {
	f.calls++
	return f.functions[strings.ToLower(name)]
}

func (f *fakeRuntime) Setting(name string) (string, bool) {
	f.calls++
	v, ok := f.settings[name]
	return v, ok
}

func (f *fakeRuntime) Constant(name string) (string, bool) {
	f.calls++
	v, ok := f.constants[name]
	return v, ok
}

func (f *fakeRuntime) Info() string {
	f.calls++
	return f.info
}

func (f *fakeRuntime) GDInfo() (map[string]string, bool) {
	f.calls++
	return f.gd, f.gd != nil
}

func (f *fakeRuntime) CurlVersion() (string, bool) {
	f.calls++
	return f.curl, f.curl != ""
}

func (f *fakeRuntime) SessionSavePath() string {
	f.calls++
	return f.sessionPath
}

func (f *fakeRuntime) IncludePathExtendable() bool {
	f.calls++
	return f.includePath
}

func (f *fakeRuntime) DiskFreeSpace() (float64, bool) {
	f.calls++
	return f.diskFree, f.diskKnown
}
