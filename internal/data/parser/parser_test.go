package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-optima-rum/internal/core/model"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, sig *model.Signal)
	}{
		{
			name: "navigation",
			line: `{"type":"navigation","ts":1724652000123,"rel_time":2500.5,"data":{"method":"pushState","url":"https://app.dev/settings"}}`,
			check: func(t *testing.T, sig *model.Signal) {
				assert.Equal(t, model.SignalNavigation, sig.Type)
				assert.Equal(t, int64(1724652000123), sig.Timestamp)
				assert.Equal(t, 2500.5, sig.RelTime)
				require.NotNil(t, sig.Navigation)
				assert.Equal(t, "pushState", sig.Navigation.Method)
				assert.Equal(t, "https://app.dev/settings", sig.Navigation.URL)
			},
		},
		{
			name: "resource",
			line: `{"type":"resource","ts":1,"rel_time":120,"data":{"url":"https://cdn.app.dev/a.js","initiator_type":"script","start_time":100,"duration":80,"transfer_size":5000,"encoded_body_size":4800}}`,
			check: func(t *testing.T, sig *model.Signal) {
				require.NotNil(t, sig.Resource)
				assert.Equal(t, "script", sig.Resource.InitiatorType)
				assert.Equal(t, int64(5000), sig.Resource.TransferSize)
			},
		},
		{
			name: "layout shift",
			line: `{"type":"layout_shift","ts":1,"rel_time":900,"data":{"value":0.08,"had_recent_input":false,"start_time":900,"sources":["div.banner"]}}`,
			check: func(t *testing.T, sig *model.Signal) {
				require.NotNil(t, sig.LayoutShift)
				assert.InDelta(t, 0.08, sig.LayoutShift.Value, 1e-9)
				assert.Equal(t, []string{"div.banner"}, sig.LayoutShift.Sources)
			},
		},
		{
			name: "interaction with nested element",
			line: `{"type":"interaction","ts":1,"rel_time":1950,"data":{"kind":"click","element":{"tag":"span","parent":{"tag":"a","href":"/settings"}}}}`,
			check: func(t *testing.T, sig *model.Signal) {
				require.NotNil(t, sig.Interaction)
				assert.Equal(t, "click", sig.Interaction.Kind)
				require.NotNil(t, sig.Interaction.Element.Parent)
				assert.Equal(t, "a", sig.Interaction.Element.Parent.Tag)
			},
		},
		{
			name: "error",
			line: `{"type":"error","ts":1,"rel_time":4000,"data":{"source":"unhandledrejection","message":"fetch failed","file":"api.js","line":7}}`,
			check: func(t *testing.T, sig *model.Signal) {
				require.NotNil(t, sig.Error)
				assert.Equal(t, "unhandledrejection", sig.Error.Source)
				assert.Equal(t, 7, sig.Error.Line)
			},
		},
		{
			name: "lifecycle without data defaults empty",
			line: `{"type":"lifecycle","ts":1,"rel_time":5000,"data":{"state":"hidden"}}`,
			check: func(t *testing.T, sig *model.Signal) {
				require.NotNil(t, sig.Lifecycle)
				assert.Equal(t, "hidden", sig.Lifecycle.State)
			},
		},
		{
			name: "custom event properties",
			line: `{"type":"custom_event","ts":1,"rel_time":6000,"data":{"name":"signup","properties":{"plan":"pro","seats":3}}}`,
			check: func(t *testing.T, sig *model.Signal) {
				require.NotNil(t, sig.CustomEvent)
				assert.Equal(t, "signup", sig.CustomEvent.Name)
				assert.Equal(t, "pro", sig.CustomEvent.Properties["plan"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ParseLine([]byte(tt.line))
			require.NoError(t, err)
			tt.check(t, sig)
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "not JSON", line: `{{{`},
		{name: "missing type", line: `{"ts":1,"data":{}}`},
		{name: "unknown type", line: `{"type":"telemetry2","ts":1,"data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine([]byte(tt.line))
			assert.Error(t, err)
		})
	}
}

func TestParseFileSkipsInvalidLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.jsonl")
	content := `{"type":"navigation","ts":1,"rel_time":0,"data":{"method":"initial","url":"https://app.dev/"}}
not json at all

{"type":"paint","ts":2,"rel_time":800,"data":{"name":"first-contentful-paint","start_time":800}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	signals, err := NewParser().ParseFile(path)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, model.SignalNavigation, signals[0].Type)
	assert.Equal(t, model.SignalPaint, signals[1].Type)
}

func TestParseFileMissing(t *testing.T) {
	_, err := NewParser().ParseFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}
