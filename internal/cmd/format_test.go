package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowedOutputFormats(t *testing.T) {
	t.Parallel()

	require.Equal(t, OutputFormats{FormatJSON, FormatText, FormatYAML}, AllowedOutputFormats())
	require.Equal(t, "json, text, yaml", AllowedOutputFormats().String())
}

func TestOutputFormat_Set(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{name: "json", input: "json", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "text", input: "text", want: FormatText},
		{name: "mixed case", input: "JSON", want: FormatJSON},
		{name: "surrounding whitespace", input: " yaml ", want: FormatYAML},
		{name: "unknown", input: "xml", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var f OutputFormat
			err := f.Set(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, f)
			require.Equal(t, "format", f.Type())
		})
	}
}
