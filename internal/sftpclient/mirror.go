// Package sftpclient mirrors finished download artifacts to a remote
// host over SFTP. Mirroring is optional and always best-effort: a failed
// upload never fails the download that produced the file.
package sftpclient

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type Config struct {
	Host      string
	Port      int
	User      string
	Pass      string
	RemoteDir string
}

// Mirror holds one SFTP connection for the lifetime of a run.
type Mirror struct {
	cfg     Config
	sshConn *ssh.Client
	client  *sftp.Client
}

// Connect dials the mirror host. The context bounds the dial only; the
// connection itself lives until Close.
func Connect(ctx context.Context, cfg Config) (*Mirror, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return nil, fmt.Errorf("sftp: mirror host, user and password are all required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         20 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshConn *ssh.Client
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("sftp: dial %s: %w", addr, r.err)
		}
		sshConn = r.client
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("sftp: new client: %w", err)
	}

	return &Mirror{cfg: cfg, sshConn: sshConn, client: client}, nil
}

func (m *Mirror) Close() error {
	if m.client != nil {
		m.client.Close()
	}
	if m.sshConn != nil {
		return m.sshConn.Close()
	}
	return nil
}

// UploadFile copies one local file to RemoteDir/relPath, creating parent
// directories as needed. An existing remote file of the same size is
// skipped, matching the local skip-if-exists behavior.
func (m *Mirror) UploadFile(ctx context.Context, localPath, relPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("sftp: stat local file: %w", err)
	}

	remotePath := path.Join(m.cfg.RemoteDir, filepath.ToSlash(relPath))
	if rinfo, err := m.client.Stat(remotePath); err == nil && rinfo.Size() == info.Size() {
		return nil
	}

	if err := m.client.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", path.Dir(remotePath), err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	defer src.Close()

	dst, err := m.client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: create remote file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		m.client.Remove(remotePath)
		return fmt.Errorf("sftp: upload %s: %w", relPath, err)
	}
	return nil
}

// UploadTree mirrors every regular file under localDir, preserving the
// directory layout relative to localDir. It returns the number of files
// uploaded and the first error encountered, continuing past per-file
// failures.
func (m *Mirror) UploadTree(ctx context.Context, localDir string) (int, error) {
	uploaded := 0
	var firstErr error

	walkErr := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		if err := m.UploadFile(ctx, p, rel); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		uploaded++
		return nil
	})
	if walkErr != nil && firstErr == nil {
		firstErr = walkErr
	}
	return uploaded, firstErr
}
