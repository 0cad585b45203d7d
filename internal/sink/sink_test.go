package sink

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartkeiba/internal/config"
	"smartkeiba/internal/domain"
	"smartkeiba/internal/secrets"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "ftp://smartkb.mixh.jp", want: Location{Scheme: "ftp", Host: "smartkb.mixh.jp"}},
		{raw: "ftp://smartkb.mixh.jp:2121/kolbi/in/", want: Location{Scheme: "ftp", Host: "smartkb.mixh.jp:2121", Prefix: "kolbi/in"}},
		{raw: "s3://exports/keiba", want: Location{Scheme: "s3", Host: "exports", Prefix: "keiba"}},
		{raw: "gs://exports", want: Location{Scheme: "gs", Host: "exports"}},
		{raw: "az://container/a/b", want: Location{Scheme: "az", Host: "container", Prefix: "a/b"}},
		{raw: "file:///var/lib/kolbi/out", want: Location{Scheme: "file", Prefix: "/var/lib/kolbi/out"}},
		{raw: "file://out", want: Location{Scheme: "file", Prefix: "out"}},
		{raw: "sftp://host", wantErr: true},
		{raw: "s3:///nobucket", wantErr: true},
		{raw: "no-scheme", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			if tt.wantErr {
				var cerr *domain.ConfigurationError
				assert.True(t, errors.As(err, &cerr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationKey(t *testing.T) {
	assert.Equal(t, "a.csv", Location{}.key("a.csv"))
	assert.Equal(t, "keiba/in/a.csv", Location{Prefix: "keiba"}.key("in/a.csv"))
}

func TestFTPAddr(t *testing.T) {
	assert.Equal(t, "smartkb.mixh.jp:21", ftpAddr("smartkb.mixh.jp"))
	assert.Equal(t, "127.0.0.1:2121", ftpAddr("127.0.0.1:2121"))
}

func TestNewFTP_Anonymous(t *testing.T) {
	f := NewFTP(Location{Scheme: "ftp", Host: "h", Prefix: "in"}, "", "", slog.New(slog.DiscardHandler))
	assert.Equal(t, anonymousUser, f.user)
	assert.Equal(t, "ftp://h:21/in", f.String())
}

func TestLocal_Put(t *testing.T) {
	dir := t.TempDir()
	s := NewLocal(dir)

	require.NoError(t, s.Put(context.Background(), "in/race_20240301_20240301.csv", strings.NewReader("id\r\n1\r\n")))
	data, err := os.ReadFile(filepath.Join(dir, "in", "race_20240301_20240301.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\r\n1\r\n", string(data))

	require.NoError(t, s.Put(context.Background(), "in/race_20240301_20240301.csv", strings.NewReader("id\r\n2\r\n")))
	data, err = os.ReadFile(filepath.Join(dir, "in", "race_20240301_20240301.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\r\n2\r\n", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "in"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

type fixedAccessor map[string]string

func (f fixedAccessor) Access(_ context.Context, v string) (string, error) { return f[v], nil }

func TestOpen(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	resolver := secrets.NewResolver(fixedAccessor{
		"projects/p/secrets/user/versions/latest": "kolbi",
		"projects/p/secrets/pass/versions/latest": "pw",
	})

	s, err := Open(ctx, config.SinkConfig{
		URL:      "ftp://smartkb.mixh.jp/in",
		User:     "projects/p/secrets/user",
		Password: "projects/p/secrets/pass",
	}, resolver, logger)
	require.NoError(t, err)
	f, ok := s.(*FTP)
	require.True(t, ok)
	assert.Equal(t, "kolbi", f.user)
	assert.Equal(t, "pw", f.password)
	assert.Equal(t, "in", f.dir)

	dir := t.TempDir()
	s, err = Open(ctx, config.SinkConfig{URL: "file://" + filepath.ToSlash(dir)}, resolver, logger)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	_, err = Open(ctx, config.SinkConfig{URL: "az://container"}, resolver, logger)
	var cerr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}
