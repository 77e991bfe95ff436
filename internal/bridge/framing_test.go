package bridge

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		framing Framing
		payload string
		want    string
	}{
		{
			name:    "ndjson appends newline",
			framing: FramingNDJSON,
			payload: `{"jsonrpc":"2.0","id":1}`,
			want:    "{\"jsonrpc\":\"2.0\",\"id\":1}\n",
		},
		{
			name:    "unset framing defaults to ndjson",
			framing: "",
			payload: `{}`,
			want:    "{}\n",
		},
		{
			name:    "content-length prepends header block",
			framing: FramingContentLength,
			payload: `{"id":2}`,
			want:    "Content-Length: 8\r\n\r\n{\"id\":2}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			require.NoError(t, writeFrame(w, tc.framing, []byte(tc.payload)))
			require.Equal(t, tc.want, buf.String())
		})
	}
}

func TestReadFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "newline delimited line",
			input: "{\"id\":1}\n",
			want:  `{"id":1}`,
		},
		{
			name:  "line with surrounding whitespace",
			input: "  {\"id\":1}  \n",
			want:  `{"id":1}`,
		},
		{
			name:    "blank line is skipped",
			input:   "\n",
			wantErr: errSkipFrame,
		},
		{
			name:  "content-length framed body",
			input: "Content-Length: 8\r\n\r\n{\"id\":2}",
			want:  `{"id":2}`,
		},
		{
			name:  "content-length header is case-insensitive",
			input: "content-length: 8\r\n\r\n{\"id\":3}",
			want:  `{"id":3}`,
		},
		{
			name:  "content-length with extra headers",
			input: "Content-Length: 8\r\nContent-Type: application/json\r\n\r\n{\"id\":4}",
			want:  `{"id":4}`,
		},
		{
			name:    "content-length with bad value is skipped",
			input:   "Content-Length: nope\r\n\r\n",
			wantErr: errSkipFrame,
		},
		{
			name:    "truncated content-length body",
			input:   "Content-Length: 100\r\n\r\n{\"id\":5}",
			wantErr: io.EOF,
		},
		{
			name:  "final unterminated line still yields a message",
			input: `{"id":6}`,
			want:  `{"id":6}`,
		},
		{
			name:    "empty stream",
			input:   "",
			wantErr: io.EOF,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := readFrame(bufio.NewReader(strings.NewReader(tc.input)))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, string(got))
		})
	}
}

func TestReadFrameSequence(t *testing.T) {
	t.Parallel()

	// Mixed framing on a single stream; the reader auto-detects per frame.
	input := "{\"id\":1}\nContent-Length: 8\r\n\r\n{\"id\":2}{\"id\":3}\n"
	r := bufio.NewReader(strings.NewReader(input))

	for _, want := range []string{`{"id":1}`, `{"id":2}`, `{"id":3}`} {
		got, err := readFrame(r)
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}

	_, err := readFrame(r)
	require.ErrorIs(t, err, io.EOF)
}
