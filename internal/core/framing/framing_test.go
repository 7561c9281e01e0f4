package framing_test

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/framing"
)

func TestEncode_Golden(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
	}{
		{name: "two_records", paths: []string{"a.txt", "/opt/Zed.app"}},
		{name: "empty_and_unicode", paths: []string{"", "éx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := framing.Encode(tt.paths)
			require.NoError(t, err)

			g := goldie.New(t)
			g.Assert(t, tt.name, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	paths := []string{
		"",
		"/",
		"/home/user/a.txt",
		"/Applications/Safari.app",
		"/tmp/日本語/ファイル",
		strings.Repeat("x", framing.MaxPayload),
	}

	for _, p := range paths {
		buf, err := framing.Encode([]string{p})
		require.NoError(t, err)
		assert.Len(t, buf, framing.PrefixSize+len(p))

		got, err := framing.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, []string{p}, got)
	}
}

func TestRoundTrip_Services(t *testing.T) {
	services := []domain.Service{{Path: "/a"}, {Path: "/b/c"}, {Path: "/a"}}

	buf, err := framing.EncodeServices(services)
	require.NoError(t, err)

	got, err := framing.DecodeServices(buf)
	require.NoError(t, err)
	assert.Equal(t, services, got)
}

func TestEncode_Empty(t *testing.T) {
	buf, err := framing.Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, buf)

	got, err := framing.Decode(buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppend_RejectsOversizedPath(t *testing.T) {
	prefix := []byte{0x00, 0x01, 'a'}
	path := strings.Repeat("x", framing.MaxPayload+1)

	out, err := framing.Append(prefix, path)
	require.Error(t, err)
	assert.Equal(t, prefix, out, "dst must be left untouched")

	var encErr *framing.EncodeError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, framing.MaxPayload+1, encErr.Size)
	require.ErrorIs(t, err, domain.ErrRecordTooLarge)
	require.ErrorIs(t, err, domain.ErrEncode)
	assert.NotErrorIs(t, err, domain.ErrDecode)
}

func TestAppend_RejectsInvalidUTF8(t *testing.T) {
	_, err := framing.Append(nil, "bad\xffpath")
	require.ErrorIs(t, err, domain.ErrRecordNotUTF8)
	require.ErrorIs(t, err, domain.ErrEncode)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name       string
		buf        []byte
		wantErr    error
		wantOffset int
	}{
		{
			name:       "single byte prefix",
			buf:        []byte{0x00},
			wantErr:    domain.ErrTruncatedPrefix,
			wantOffset: 0,
		},
		{
			name:       "payload shorter than prefix",
			buf:        []byte{0x00, 0x05, 'a', 'b'},
			wantErr:    domain.ErrTruncatedPayload,
			wantOffset: 0,
		},
		{
			name:       "prefix without payload",
			buf:        []byte{0xff, 0xff},
			wantErr:    domain.ErrTruncatedPayload,
			wantOffset: 0,
		},
		{
			name:       "second record truncated",
			buf:        []byte{0x00, 0x01, 'a', 0x00, 0x02, 'b'},
			wantErr:    domain.ErrTruncatedPayload,
			wantOffset: 3,
		},
		{
			name:       "dangling byte after record",
			buf:        []byte{0x00, 0x01, 'a', 0x00},
			wantErr:    domain.ErrTruncatedPrefix,
			wantOffset: 3,
		},
		{
			name:       "invalid utf8",
			buf:        []byte{0x00, 0x02, 0xc3, 0x28},
			wantErr:    domain.ErrInvalidUTF8,
			wantOffset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got []string
				err error
			)
			require.NotPanics(t, func() {
				got, err = framing.Decode(tt.buf)
			})
			assert.Nil(t, got, "no partial result on error")
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, domain.ErrDecode)

			var decErr *framing.DecodeError
			require.ErrorAs(t, err, &decErr)
			assert.Equal(t, tt.wantOffset, decErr.Offset)
		})
	}
}

func TestRecords_StopsEarly(t *testing.T) {
	buf, err := framing.Encode([]string{"a", "b", "c"})
	require.NoError(t, err)

	var seen []string
	for path, err := range framing.Records(buf) {
		require.NoError(t, err)
		seen = append(seen, path)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x00, 0x01, 'a'})
	f.Add([]byte{0xff, 0xff, 0x00})
	f.Fuzz(func(t *testing.T, buf []byte) {
		paths, err := framing.Decode(buf)
		if err != nil {
			return
		}
		again, err := framing.Encode(paths)
		require.NoError(t, err)
		assert.Equal(t, buf, again)
	})
}
