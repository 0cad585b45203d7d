package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/jlaffaye/ftp"

	"smartkeiba/internal/domain"
)

const (
	ftpDefaultPort = "21"
	ftpDialTimeout = 30 * time.Second
	anonymousUser  = "anonymous"
)

var _ domain.Sink = (*FTP)(nil)

// ftpConn is the part of *ftp.ServerConn the sink uses.
type ftpConn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

type ftpDialer func(ctx context.Context, addr string) (ftpConn, error)

func dialFTP(ctx context.Context, addr string) (ftpConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpDialTimeout))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// FTP stores files on an FTP server. Every Put opens its own connection.
type FTP struct {
	addr     string
	dir      string
	user     string
	password string
	logger   *slog.Logger
	dial     ftpDialer
}

// NewFTP creates an FTP sink. An empty user logs in anonymously.
func NewFTP(loc Location, user, password string, logger *slog.Logger) *FTP {
	if user == "" {
		user, password = anonymousUser, anonymousUser
	}
	return &FTP{
		addr:     ftpAddr(loc.Host),
		dir:      loc.Prefix,
		user:     user,
		password: password,
		logger:   logger,
		dial:     dialFTP,
	}
}

func ftpAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, ftpDefaultPort)
}

// Put uploads r as name. When the configured directory cannot be entered
// the file goes to the login directory.
func (f *FTP) Put(ctx context.Context, name string, r io.Reader) error {
	conn, err := f.dial(ctx, f.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.addr, err)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(f.user, f.password); err != nil {
		return fmt.Errorf("login to %s: %w", f.addr, err)
	}
	if f.dir != "" {
		if err := conn.ChangeDir(f.dir); err != nil {
			f.logger.Warn("cannot change FTP directory, uploading to root",
				"dir", f.dir,
				"error", err,
			)
		}
	}
	if err := conn.Stor(name, r); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}

func (f *FTP) String() string {
	if f.dir == "" {
		return "ftp://" + f.addr
	}
	return "ftp://" + f.addr + "/" + f.dir
}
