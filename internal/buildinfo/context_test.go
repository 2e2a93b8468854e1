package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Accessors(t *testing.T) {
	tests := []struct {
		name     string
		ctx      *Context
		version  string
		date     string
		instance string
	}{
		{"nil context", nil, unknown, unknown, unknown},
		{"empty fields", &Context{}, unknown, unknown, unknown},
		{"populated", &Context{Version: "1.2.0", BuildDate: "2025-03-14", InstanceID: "a1b2c3d4"}, "1.2.0", "2025-03-14", "a1b2c3d4"},
		{"pre-release tag", &Context{Version: "1.2.0-rc.1"}, "1.2.0-rc.1", unknown, unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info BuildInfo = tt.ctx
			assert.Equal(t, tt.version, info.GetVersion())
			assert.Equal(t, tt.date, info.GetBuildDate())
			assert.Equal(t, tt.instance, info.GetInstanceID())
		})
	}
}

func TestContext_String(t *testing.T) {
	c := &Context{Version: "1.2.0", BuildDate: "2025-03-14"}
	assert.Contains(t, c.String(), "f1predict 1.2.0 (built 2025-03-14, go")
}
