package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/jlaffaye/ftp"
	"github.com/samber/lo"
)

const defaultFtpPort = "21"

type FtpClient struct {
	url *url.URL

	client *ftp.ServerConn
	lock   sync.Mutex
}

func NewFtpClient(u *url.URL) *FtpClient {
	return &FtpClient{
		url: u,

		client: nil,
		lock:   sync.Mutex{},
	}
}

// RemotePath is the target file, relative to the login directory.
func (c *FtpClient) RemotePath() string {
	return strings.TrimPrefix(c.url.Path, "/")
}

func (c *FtpClient) init(ctx context.Context) error {
	if c.client != nil {
		var err error
		if err = c.ping(ctx); err == nil {
			return nil
		}

		_ = c.client.Quit()
		c.client = nil
	}

	host := c.url.Host
	if c.url.Port() == "" {
		host = net.JoinHostPort(c.url.Hostname(), defaultFtpPort)
	}

	conn, err := ftp.Dial(host, ftp.DialWithContext(ctx))
	if err != nil {
		return fmt.Errorf("can't connect to %s: %w", host, err)
	}

	password, ok := c.url.User.Password()
	if !ok {
		password = ""
	}

	if loginErr := conn.Login(c.url.User.Username(), password); loginErr != nil {
		_ = conn.Quit()
		return fmt.Errorf("can't login as %s: %w", c.url.User.Username(), loginErr)
	}

	c.client = conn

	return nil
}

func (c *FtpClient) ping(_ context.Context) error {
	if c.client == nil {
		return ErrClientIsNil
	}

	if err := c.client.NoOp(); err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}

	return nil
}

func (c *FtpClient) makeDir(remotePath string) error {
	if remotePath == "" {
		// login directory
		return nil
	}

	dirs := splitPath(remotePath)
	dirs = append(dirs, remotePath)

	for _, dir := range dirs {
		if err := c.client.MakeDir(dir); err != nil && !isIgnorableError(err) {
			return fmt.Errorf("can't make directory %s: %w", dir, err)
		}
	}

	return nil
}

// Upload replaces the remote file with content, creating missing parent
// directories first.
func (c *FtpClient) Upload(ctx context.Context, content io.Reader) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.init(ctx); err != nil {
		return err
	}

	remotePath := c.RemotePath()

	dir, _ := path.Split(remotePath)
	if err := c.makeDir(strings.TrimSuffix(dir, "/")); err != nil {
		return err
	}

	if err := c.client.Stor(remotePath, content); err != nil {
		return fmt.Errorf("can't upload file to %s: %w", remotePath, err)
	}

	return nil
}

func (c *FtpClient) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.client == nil {
		return nil
	}

	err := c.client.Quit()
	c.client = nil
	if err != nil {
		return fmt.Errorf("failed to quit: %w", err)
	}

	return nil
}

func isIgnorableError(err error) bool {
	if err, ok := lo.ErrorsAs[*textproto.Error](err); ok && err.Code == ftp.StatusFileUnavailable {
		return true
	}
	return false
}

func splitPath(dir string) []string {
	entries := make([]string, 0, strings.Count(dir, "/"))

	dir = path.Clean(dir)

	for {
		dir = path.Dir(dir)
		if dir == "." || dir == "/" {
			break
		}
		entries = append(entries, dir)
	}

	for i := 0; i < len(entries)/2; i++ {
		entries[i], entries[len(entries)-i-1] = entries[len(entries)-i-1], entries[i]
	}

	return entries
}
