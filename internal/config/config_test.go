package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

// clearEnv resets every variable ParseArgs reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ALLOC_TRACER_LINE_WIDTH",
		"ALLOC_TRACER_MAX_ADDRESS",
		"ALLOC_TRACER_ATTRIBUTES",
		"ALLOC_TRACER_FILTER",
		"ALLOC_TRACER_LOG_FILE",
		"ALLOC_TRACER_TICK",
	} {
		t.Setenv(name, "")
	}
}

func TestParseArgs_BasicCommand(t *testing.T) {
	clearEnv(t)

	args := []string{"alloc-tracer", "--", "python", "./test.py"}
	cfg, err := ParseArgs(args)

	require.NoError(t, err)
	assert.Equal(t, "python", cfg.Command)
	assert.Equal(t, []string{"./test.py"}, cfg.Args)
	assert.Equal(t, uint64(0x400), cfg.LineWidth)
	assert.Equal(t, uint64(0x40000), cfg.MaxAddress)
	assert.Equal(t, "alloc-tracer.log", cfg.LogFile)
	assert.Equal(t, 33*time.Millisecond, cfg.Tick)
	assert.False(t, cfg.Headless)
	assert.Empty(t, cfg.CustomAttributes)
	assert.Empty(t, cfg.Filter)
}

func TestParseArgs_GridFlags(t *testing.T) {
	clearEnv(t)

	args := []string{"alloc-tracer", "-w", "0x1000", "--max-address", "100000", "--", "target"}
	cfg, err := ParseArgs(args)

	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), cfg.LineWidth)
	assert.Equal(t, uint64(0x100000), cfg.MaxAddress)
}

func TestParseArgs_InvalidLineWidth(t *testing.T) {
	clearEnv(t)

	_, err := ParseArgs([]string{"alloc-tracer", "-w", "zz", "--", "target"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid line width")

	_, err = ParseArgs([]string{"alloc-tracer", "-w", "0", "--", "target"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestParseArgs_MaxAddressTooLarge(t *testing.T) {
	clearEnv(t)

	_, err := ParseArgs([]string{"alloc-tracer", "-m", "ffffffffffffffff", "--", "target"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid max address")

	t.Setenv("ALLOC_TRACER_MAX_ADDRESS", "ffffffffffffffff")
	_, err = ParseArgs([]string{"alloc-tracer", "--", "target"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid max address")

	// The bound scales with the line width.
	cfg, err := ParseArgs([]string{"alloc-tracer", "-w", "100000000000", "-m", "ffffffffffffffff", "--", "target"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffffffffffffffff), cfg.MaxAddress)
}

func TestParseArgs_Replay(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseArgs([]string{"alloc-tracer", "--replay", "events.log", "--headless"})

	require.NoError(t, err)
	assert.Equal(t, "events.log", cfg.Replay)
	assert.Empty(t, cfg.Command)
	assert.True(t, cfg.Headless)
}

func TestParseArgs_SingleCustomAttribute(t *testing.T) {
	clearEnv(t)

	args := []string{"alloc-tracer", "-a", "big=size > 0x100", "--", "target"}
	cfg, err := ParseArgs(args)

	require.NoError(t, err)
	require.Len(t, cfg.CustomAttributes, 1)
	assert.Equal(t, "big", cfg.CustomAttributes[0].Name)
	assert.Equal(t, "size > 0x100", cfg.CustomAttributes[0].Expression)
}

func TestParseArgs_CustomAttributeWithEquals(t *testing.T) {
	clearEnv(t)

	args := []string{"alloc-tracer", "--attribute", `png=label == "png"`, "--", "target"}
	cfg, err := ParseArgs(args)

	require.NoError(t, err)
	require.Len(t, cfg.CustomAttributes, 1)
	assert.Equal(t, "png", cfg.CustomAttributes[0].Name)
	assert.Equal(t, `label == "png"`, cfg.CustomAttributes[0].Expression)
}

func TestParseArgs_CustomAttributeInvalidFormat(t *testing.T) {
	clearEnv(t)

	_, err := ParseArgs([]string{"alloc-tracer", "-a", "invalid_no_equals", "--", "ls"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid attribute format")
	assert.Contains(t, err.Error(), "NAME=EXPR")
}

func TestParseArgs_Filter(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseArgs([]string{"alloc-tracer", "-f", `state != "ok"`, "--", "target"})
	require.NoError(t, err)
	assert.Equal(t, `state != "ok"`, cfg.Filter)
}

func TestParseArgs_MissingCommand(t *testing.T) {
	clearEnv(t)

	_, err := ParseArgs([]string{"alloc-tracer", "--"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command specified")

	_, err = ParseArgs([]string{"alloc-tracer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command specified")
}

func TestParseArgs_NoArguments(t *testing.T) {
	_, err := ParseArgs(nil)
	assert.Error(t, err)
}

func TestParseArgs_Help(t *testing.T) {
	clearEnv(t)

	_, err := ParseArgs([]string{"alloc-tracer", "--help"})
	assert.ErrorIs(t, err, ErrHelp)
}

func TestParseArgs_UnknownOption(t *testing.T) {
	clearEnv(t)

	_, err := ParseArgs([]string{"alloc-tracer", "--bogus", "x", "--", "target"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown option")
}

func TestParseArgs_MissingValue(t *testing.T) {
	clearEnv(t)

	_, err := ParseArgs([]string{"alloc-tracer", "-w"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a value")
}

func TestParseArgs_FullCommand(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseArgs([]string{"alloc-tracer", "--", "bash", "-c", "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bash", "-c", "echo hello"}, cfg.FullCommand())
}

func TestParseEnvConfig(t *testing.T) {
	t.Setenv("ALLOC_TRACER_LINE_WIDTH", "800")
	t.Setenv("ALLOC_TRACER_MAX_ADDRESS", "80000")
	t.Setenv("ALLOC_TRACER_ATTRIBUTES", "k=label")
	t.Setenv("ALLOC_TRACER_FILTER", "size > 10")
	t.Setenv("ALLOC_TRACER_LOG_FILE", "/tmp/at.log")
	t.Setenv("ALLOC_TRACER_TICK", "100ms")

	cfg, err := ParseEnvConfig()
	require.NoError(t, err)
	assert.Equal(t, "800", cfg.LineWidth)
	assert.Equal(t, "80000", cfg.MaxAddress)
	assert.Equal(t, "k=label", cfg.Attributes)
	assert.Equal(t, "size > 10", cfg.Filter)
	assert.Equal(t, "/tmp/at.log", cfg.LogFile)
	assert.Equal(t, 100*time.Millisecond, cfg.Tick)
}

func TestParseEnvConfig_InvalidTick(t *testing.T) {
	t.Setenv("ALLOC_TRACER_TICK", "soon")

	_, err := ParseEnvConfig()
	assert.Error(t, err)
}

func TestParseArgs_EnvVarFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOC_TRACER_LINE_WIDTH", "0x200")
	t.Setenv("ALLOC_TRACER_ATTRIBUTES", "env_attr=label")

	cfg, err := ParseArgs([]string{"alloc-tracer", "--", "target"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x200), cfg.LineWidth)
	require.Len(t, cfg.CustomAttributes, 1)
	assert.Equal(t, "env_attr", cfg.CustomAttributes[0].Name)
}

func TestParseArgs_CLIOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOC_TRACER_LINE_WIDTH", "200")
	t.Setenv("ALLOC_TRACER_FILTER", "size > 1")

	cfg, err := ParseArgs([]string{"alloc-tracer", "-w", "800", "-f", "size > 2", "--", "target"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x800), cfg.LineWidth)
	assert.Equal(t, "size > 2", cfg.Filter)
}

func TestParseArgs_AttributesMerge(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOC_TRACER_ATTRIBUTES", "env_attr=label")

	cfg, err := ParseArgs([]string{"alloc-tracer", "-a", "cli_attr=size", "--", "target"})
	require.NoError(t, err)
	require.Len(t, cfg.CustomAttributes, 2)
	assert.Equal(t, "env_attr", cfg.CustomAttributes[0].Name)
	assert.Equal(t, "cli_attr", cfg.CustomAttributes[1].Name)
}

func TestParseAttributeString(t *testing.T) {
	attrs, err := ParseAttributeString("  big = size > 0x100 ; ; lbl=label;")
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, CustomAttribute{Name: "big", Expression: "size > 0x100"}, attrs[0])
	assert.Equal(t, CustomAttribute{Name: "lbl", Expression: "label"}, attrs[1])

	attrs, err = ParseAttributeString("")
	require.NoError(t, err)
	assert.Nil(t, attrs)

	_, err = ParseAttributeString("=value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name cannot be empty")

	_, err = ParseAttributeString("name=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expression cannot be empty")
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"400", 0x400, false},
		{"0x400", 0x400, false},
		{"0XFF", 0xff, false},
		{" 10 ", 0x10, false},
		{"", 0, true},
		{"0x", 0, true},
		{"g", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOTELConfig(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "team=heap, env = dev ,broken")
	t.Setenv("OTEL_SDK_DISABLED", "")

	cfg, err := ParseOTELConfig()
	require.NoError(t, err)
	assert.Equal(t, "alloc-tracer", cfg.ServiceName)
	assert.False(t, cfg.Enabled())
	assert.Empty(t, cfg.Endpoint(), "no default collector")
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("team", "heap"),
		attribute.String("env", "dev"),
	}, cfg.Resource())
	assert.Empty(t, (&OTELConfig{}).Resource())
}

func TestOTELConfig_Endpoints(t *testing.T) {
	cfg := &OTELConfig{ExporterEndpoint: "collector:4318"}
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "collector:4318", cfg.Endpoint())

	cfg.TracesEndpoint = "traces:4318"
	assert.Equal(t, "traces:4318", cfg.Endpoint())

	cfg.SDKDisabled = true
	assert.False(t, cfg.Enabled())
}
