package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTP archives on a remote host. The connection is opened on first use and
// shared by every transfer until Close.
type SFTP struct {
	opts SSHOptions
	host string

	mu     sync.Mutex
	conn   *ssh.Client
	client *sftp.Client
	stop   chan struct{}
}

// NewSFTP prepares an archive on host.
func NewSFTP(host string, opts SSHOptions) (*SFTP, error) {
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	return &SFTP{opts: opts, host: host}, nil
}

func (s *SFTP) addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.opts.Port))
}

// sftpClient validates p and returns the connected client.
func (s *SFTP) sftpClient(ctx context.Context, p string) (*sftp.Client, error) {
	if err := ValidatePath(p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	cfg, err := clientConfig(s.opts)
	if err != nil {
		return nil, fmt.Errorf("build SSH config: %w", err)
	}
	dialer := net.Dialer{Timeout: s.opts.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.addr(), err)
	}
	c, chans, reqs, err := ssh.NewClientConn(raw, s.addr(), cfg)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("SSH handshake: %w", err)
	}
	conn := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("start SFTP: %w", err)
	}
	s.conn, s.client = conn, client
	if s.opts.KeepAlive > 0 {
		s.stop = make(chan struct{})
		go keepAlive(conn, s.opts.KeepAlive, s.stop)
	}
	return client, nil
}

func keepAlive(conn *ssh.Client, every time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if _, _, err := conn.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				return
			}
		}
	}
}

func (s *SFTP) Prepare(ctx context.Context, dir string) error {
	c, err := s.sftpClient(ctx, dir)
	if err != nil {
		return err
	}
	return c.MkdirAll(dir)
}

func (s *SFTP) Size(ctx context.Context, name string) (int64, bool, error) {
	c, err := s.sftpClient(ctx, name)
	if err != nil {
		return 0, false, err
	}
	info, err := c.Stat(name)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}

// Store uploads to name+".part" and renames it over name.
func (s *SFTP) Store(ctx context.Context, local, name string) (int64, error) {
	c, err := s.sftpClient(ctx, name)
	if err != nil {
		return 0, err
	}
	src, err := os.Open(local)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	if err := c.MkdirAll(path.Dir(name)); err != nil {
		return 0, fmt.Errorf("create remote directory: %w", err)
	}
	part := name + ".part"
	dst, err := c.Create(part)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", part, err)
	}
	n, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src})
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		c.Remove(part)
		return n, fmt.Errorf("copy: %w", err)
	}

	if err := c.PosixRename(part, name); err != nil {
		// Servers without the posix-rename extension refuse to replace.
		c.Remove(name)
		if err := c.Rename(part, name); err != nil {
			c.Remove(part)
			return n, fmt.Errorf("rename into place: %w", err)
		}
	}
	return n, nil
}

func (s *SFTP) Join(dir, file string) string { return path.Join(dir, file) }

func (s *SFTP) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
		s.client = nil
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
		s.conn = nil
	}
	return errors.Join(errs...)
}

func (s *SFTP) String() string {
	user := sshUser(s.opts)
	if user == "" {
		user = "unknown"
	}
	return fmt.Sprintf("ssh://%s@%s", user, s.addr())
}

var _ Archive = (*SFTP)(nil)
