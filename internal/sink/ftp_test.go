package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFTPConn records the commands a Put issues.
type fakeFTPConn struct {
	calls    []string
	loginErr error
	cwdErr   error
	storErr  error
	stored   map[string]string
}

func (c *fakeFTPConn) Login(user, _ string) error {
	c.calls = append(c.calls, "USER "+user)
	return c.loginErr
}

func (c *fakeFTPConn) ChangeDir(path string) error {
	c.calls = append(c.calls, "CWD "+path)
	return c.cwdErr
}

func (c *fakeFTPConn) Stor(path string, r io.Reader) error {
	c.calls = append(c.calls, "STOR "+path)
	if c.storErr != nil {
		return c.storErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if c.stored == nil {
		c.stored = map[string]string{}
	}
	c.stored[path] = string(data)
	return nil
}

func (c *fakeFTPConn) Quit() error {
	c.calls = append(c.calls, "QUIT")
	return nil
}

func newTestFTP(t *testing.T, dir string, conn *fakeFTPConn) (*FTP, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	f := NewFTP(Location{Scheme: "ftp", Host: "ftp.example.jp", Prefix: dir}, "kolbi", "pw",
		slog.New(slog.NewTextHandler(&logs, nil)))
	f.dial = func(_ context.Context, addr string) (ftpConn, error) {
		assert.Equal(t, "ftp.example.jp:21", addr)
		return conn, nil
	}
	return f, &logs
}

func TestFTP_Put(t *testing.T) {
	conn := &fakeFTPConn{}
	f, logs := newTestFTP(t, "in", conn)

	require.NoError(t, f.Put(context.Background(), "race_20240301_20240301.csv", bytes.NewBufferString("id\r\n")))

	assert.Equal(t, []string{"USER kolbi", "CWD in", "STOR race_20240301_20240301.csv", "QUIT"}, conn.calls)
	assert.Equal(t, "id\r\n", conn.stored["race_20240301_20240301.csv"])
	assert.Empty(t, logs.String())
}

func TestFTP_Put_NoDirectory(t *testing.T) {
	conn := &fakeFTPConn{}
	f, _ := newTestFTP(t, "", conn)

	require.NoError(t, f.Put(context.Background(), "a.csv", bytes.NewBufferString("x")))
	assert.Equal(t, []string{"USER kolbi", "STOR a.csv", "QUIT"}, conn.calls)
}

func TestFTP_Put_ChangeDirFailureUploadsToRoot(t *testing.T) {
	conn := &fakeFTPConn{cwdErr: &textproto.Error{Code: 550, Msg: "in: No such file or directory"}}
	f, logs := newTestFTP(t, "in", conn)

	require.NoError(t, f.Put(context.Background(), "a.csv", bytes.NewBufferString("x")))

	assert.Equal(t, []string{"USER kolbi", "CWD in", "STOR a.csv", "QUIT"}, conn.calls)
	assert.Equal(t, "x", conn.stored["a.csv"])
	assert.Contains(t, logs.String(), "cannot change FTP directory")
	assert.Contains(t, logs.String(), "550")
}

func TestFTP_Put_StoreFailure(t *testing.T) {
	storErr := &textproto.Error{Code: 552, Msg: "quota exceeded"}
	conn := &fakeFTPConn{storErr: storErr}
	f, _ := newTestFTP(t, "in", conn)

	err := f.Put(context.Background(), "a.csv", bytes.NewBufferString("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, storErr)
	assert.Contains(t, err.Error(), "store a.csv")
	assert.Equal(t, "QUIT", conn.calls[len(conn.calls)-1])
}

func TestFTP_Put_LoginFailure(t *testing.T) {
	conn := &fakeFTPConn{loginErr: &textproto.Error{Code: 530, Msg: "Login incorrect."}}
	f, _ := newTestFTP(t, "in", conn)

	err := f.Put(context.Background(), "a.csv", bytes.NewBufferString("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login to ftp.example.jp:21")
	assert.Equal(t, []string{"USER kolbi", "QUIT"}, conn.calls)
}

func TestFTP_Put_DialFailure(t *testing.T) {
	f, _ := newTestFTP(t, "in", nil)
	dialErr := errors.New("connection refused")
	f.dial = func(context.Context, string) (ftpConn, error) { return nil, dialErr }

	err := f.Put(context.Background(), "a.csv", bytes.NewBufferString("x"))
	assert.ErrorIs(t, err, dialErr)
}
