package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opt struct {
	kind string
	val  string
}

func TestNormalizeExporterType(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "", want: "otlp"},
		{input: "stdout", want: "console"},
		{input: "noop", want: "nop"},
		{input: " OTLP ", want: "otlp"},
		{input: "none", want: "none"},
	}

	for _, tt := range cases {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeExporterType(tt.input))
		})
	}
}

func TestResolveParams(t *testing.T) {
	cfg := &Config{
		OTLP: &OTLPConfig{
			Endpoint:    "collector:4317",
			Protocol:    "http/protobuf",
			Timeout:     500, // numeric env value, milliseconds
			Insecure:    BoolPtr(false),
			Compression: "gzip",
		},
	}

	params := resolveParams(cfg, "stdout", "")
	assert.Equal(t, "console", params.Type)
	assert.Equal(t, "collector:4317", params.Endpoint)
	assert.Equal(t, 500*time.Millisecond, params.Timeout)
	assert.False(t, params.Insecure)
	assert.True(t, params.http())

	params = resolveParams(cfg, "", "http://traces:4318/v1/traces")
	assert.Equal(t, "otlp", params.Type)
	assert.Equal(t, "http://traces:4318/v1/traces", params.Endpoint)

	params = resolveParams(nil, "", "")
	assert.Equal(t, "localhost:4317", params.Endpoint)
	assert.Equal(t, "grpc", params.Protocol)
	assert.True(t, params.Insecure)
	assert.False(t, params.http())
}

func TestBuildHTTPOptions(t *testing.T) {
	params := exporterParams{
		Endpoint:    "http://localhost:4318/v1/logs",
		Headers:     map[string]string{"k": "v"},
		Timeout:     5 * time.Second,
		Insecure:    true,
		Compression: "gzip",
	}
	build := func(p exporterParams) []opt {
		return buildHTTPOptions(p,
			func(v string) opt { return opt{kind: "endpoint", val: v} },
			func(v string) opt { return opt{kind: "endpointURL", val: v} },
			func(map[string]string) opt { return opt{kind: "headers"} },
			func(d time.Duration) opt { return opt{kind: "timeout", val: d.String()} },
			func() opt { return opt{kind: "insecure"} },
			func() opt { return opt{kind: "compression"} },
		)
	}

	opts := build(params)
	require.NotEmpty(t, opts)
	assert.Equal(t, "endpointURL", opts[0].kind)
	assert.Equal(t, []string{"endpointURL", "headers", "timeout", "insecure", "compression"}, kinds(opts))

	params.Endpoint = "localhost:4318"
	params.Headers = nil
	params.Compression = ""
	opts = build(params)
	assert.Equal(t, []string{"endpoint", "timeout", "insecure"}, kinds(opts))
}

func TestBuildGRPCOptions(t *testing.T) {
	params := exporterParams{
		Endpoint:    "localhost:4317",
		Headers:     map[string]string{"k": "v"},
		Timeout:     2 * time.Second,
		Compression: "gzip",
	}

	opts := buildGRPCOptions(params,
		func(v string) opt { return opt{kind: "endpoint", val: v} },
		func(map[string]string) opt { return opt{kind: "headers"} },
		func(d time.Duration) opt { return opt{kind: "timeout", val: d.String()} },
		func() opt { return opt{kind: "insecure"} },
		func() opt { return opt{kind: "compression"} },
	)

	assert.Equal(t, []string{"endpoint", "headers", "timeout", "compression"}, kinds(opts))
	assert.Equal(t, "localhost:4317", opts[0].val)
}

func kinds(opts []opt) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.kind)
	}

	return out
}
