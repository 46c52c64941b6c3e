package check

// Runtime is the introspection surface of the interpreter being checked.
// Implementations answer from a snapshot and never block or fail; an
// unknown answer is reported through the boolean results.
type Runtime interface {
	// Version is the interpreter's reported version, suffixes included.
	Version() string
	ExtensionLoaded(name string) bool
	FunctionExists(name string) bool
	// Setting returns a configuration value and whether the setting exists.
	Setting(name string) (string, bool)
	Constant(name string) (string, bool)
	// Info is the general diagnostic dump (phpinfo output).
	Info() string
	// GDInfo returns the image library's feature table, if the library is present.
	GDInfo() (map[string]string, bool)
	CurlVersion() (string, bool)
	SessionSavePath() string
	IncludePathExtendable() bool
	// DiskFreeSpace returns free bytes at the install location.
	DiskFreeSpace() (float64, bool)
}
