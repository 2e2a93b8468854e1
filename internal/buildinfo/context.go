// Package buildinfo carries build-time metadata separate from user configuration.
package buildinfo

import "runtime"

const unknown = "unknown"

// BuildInfo provides read access to build metadata.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
	GetInstanceID() string
}

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup from linker flags.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// InstanceID identifies this process in logs and MQTT client IDs
	InstanceID string
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// GetInstanceID implements BuildInfo.GetInstanceID
func (c *Context) GetInstanceID() string {
	if c == nil || c.InstanceID == "" {
		return unknown
	}
	return c.InstanceID
}

// String returns a one-line description suitable for the version command.
func (c *Context) String() string {
	return "f1predict " + c.GetVersion() + " (built " + c.GetBuildDate() + ", " + runtime.Version() + ")"
}
