package registry

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  []Descriptor
	}{
		{
			name:  "empty value",
			value: "",
			want:  nil,
		},
		{
			name:  "single entry with defaults",
			value: "github:https://gh.example.com",
			want: []Descriptor{
				{
					Name:             "github",
					BaseURL:          "https://gh.example.com",
					HealthPath:       DefaultHealthPath,
					HealthMethod:     DefaultHealthMethod,
					CapabilitiesPath: DefaultCapabilitiesPath,
				},
			},
		},
		{
			name:  "entry with all options",
			value: "memento:http://localhost:8005|health=/ping|health_method=post|capabilities=/manifest.json|tools=remember+recall",
			want: []Descriptor{
				{
					Name:             "memento",
					BaseURL:          "http://localhost:8005",
					HealthPath:       "/ping",
					HealthMethod:     "POST",
					CapabilitiesPath: "/manifest.json",
					DefaultTools:     []string{"remember", "recall"},
				},
			},
		},
		{
			name:  "empty capabilities value disables manifest polling",
			value: "plain:http://localhost:9000|capabilities=",
			want: []Descriptor{
				{
					Name:                "plain",
					BaseURL:             "http://localhost:9000",
					HealthPath:          DefaultHealthPath,
					HealthMethod:        DefaultHealthMethod,
					DisableCapabilities: true,
				},
			},
		},
		{
			name:  "multiple entries with one malformed",
			value: "a:http://a.local,no-base-url,b:http://b.local",
			want: []Descriptor{
				{
					Name:             "a",
					BaseURL:          "http://a.local",
					HealthPath:       DefaultHealthPath,
					HealthMethod:     DefaultHealthMethod,
					CapabilitiesPath: DefaultCapabilitiesPath,
				},
				{
					Name:             "b",
					BaseURL:          "http://b.local",
					HealthPath:       DefaultHealthPath,
					HealthMethod:     DefaultHealthMethod,
					CapabilitiesPath: DefaultCapabilitiesPath,
				},
			},
		},
		{
			name:  "whitespace only entries are skipped",
			value: " , ,",
			want:  nil,
		},
		{
			name:  "unknown options are ignored",
			value: "x:http://x.local|shiny=yes",
			want: []Descriptor{
				{
					Name:             "x",
					BaseURL:          "http://x.local",
					HealthPath:       DefaultHealthPath,
					HealthMethod:     DefaultHealthMethod,
					CapabilitiesPath: DefaultCapabilitiesPath,
				},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseProviderList(tc.value, hclog.NewNullLogger())
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSplitTools(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "empty", value: "", want: nil},
		{name: "single", value: "remember", want: []string{"remember"}},
		{name: "multiple", value: "remember+recall+forget", want: []string{"remember", "recall", "forget"}},
		{name: "empty segments dropped", value: "+remember++recall+", want: []string{"remember", "recall"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, SplitTools(tc.value))
		})
	}
}

func TestDescriptorNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Descriptor
		ok   bool
	}{
		{name: "missing name", in: Descriptor{BaseURL: "http://x"}, ok: false},
		{name: "missing base url", in: Descriptor{Name: "x"}, ok: false},
		{name: "whitespace only name", in: Descriptor{Name: "   ", BaseURL: "http://x"}, ok: false},
		{name: "valid", in: Descriptor{Name: "x", BaseURL: "http://x"}, ok: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := tc.in
			require.Equal(t, tc.ok, d.Normalize())
			if tc.ok {
				require.Equal(t, DefaultHealthPath, d.HealthPath)
				require.Equal(t, DefaultHealthMethod, d.HealthMethod)
				require.Equal(t, DefaultCapabilitiesPath, d.CapabilitiesPath)
			}
		})
	}
}
