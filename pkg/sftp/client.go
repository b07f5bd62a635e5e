// Package sftp implements the remote side of a session over SFTP.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/quocson95/ferry/pkg/filesys"
)

// SFTP status codes, draft-ietf-secsh-filexfer
const (
	fxNoSuchFile       = 2
	fxPermissionDenied = 3
	fxFailure          = 4
	fxNoConnection     = 6
	fxConnectionLost   = 7
	fxFileExists       = 11
	fxNoSpace          = 14
	fxQuotaExceeded    = 15
)

// Client is a filesys.Filesystem over an SFTP subsystem
type Client struct {
	sshClient  *ssh.Client // nil when no shell is available
	sftpClient *sftp.Client
	logger     *slog.Logger
}

var _ filesys.Filesystem = (*Client)(nil)

// NewClient creates a new SFTP client from an existing SSH connection
func NewClient(sshClient *ssh.Client, logger *slog.Logger) (*Client, error) {
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return newClient(sshClient, sftpClient, logger), nil
}

func newClient(sshClient *ssh.Client, sftpClient *sftp.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		logger:     logger.With("transport", "sftp"),
	}
}

// Close closes the SFTP connection
func (c *Client) Close() error {
	return c.sftpClient.Close()
}

func (c *Client) Separator() string {
	return "/"
}

// Home returns the login directory
func (c *Client) Home(ctx context.Context) (string, error) {
	wd, err := c.sftpClient.Getwd()
	if err != nil {
		return "", wrap("home", "", err)
	}
	return wd, nil
}

func (c *Client) List(ctx context.Context, dir string) ([]filesys.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("list", dir, err)
	}
	entries, err := c.sftpClient.ReadDir(dir)
	if err != nil {
		return nil, wrap("list", dir, err)
	}

	files := make([]filesys.FileEntry, 0, len(entries))
	for _, entry := range entries {
		file := filesys.FileEntry{
			Name:       entry.Name(),
			Kind:       filesys.KindFile,
			Size:       entry.Size(),
			ModifiedAt: entry.ModTime(),
			Path:       filesys.Join("/", dir, entry.Name()),
		}
		if entry.Mode()&os.ModeSymlink != 0 {
			// Resolve the link target, keep it a file if the target is gone
			if target, err := c.sftpClient.Stat(file.Path); err == nil {
				entry = target
				file.Size = target.Size()
			}
		}
		if entry.IsDir() {
			file.Kind = filesys.KindDirectory
			file.Size = 0
		}
		files = append(files, file)
	}
	return files, nil
}

func (c *Client) Stat(ctx context.Context, path string) (filesys.Info, error) {
	if err := ctx.Err(); err != nil {
		return filesys.Info{}, wrap("stat", path, err)
	}
	info, err := c.sftpClient.Stat(path)
	if err != nil {
		return filesys.Info{}, wrap("stat", path, err)
	}
	kind := filesys.KindFile
	if info.IsDir() {
		kind = filesys.KindDirectory
	}
	return filesys.Info{Size: info.Size(), ModifiedAt: info.ModTime(), Kind: kind}, nil
}

func (c *Client) OpenReader(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := c.sftpClient.Open(path)
	if err != nil {
		return nil, wrap("open", path, err)
	}
	return f, nil
}

// fileWriter uploads to a hidden sibling of path and renames it into place
// on Close. An existing file at path stays intact until then.
type fileWriter struct {
	c    *Client
	f    *sftp.File
	tmp  string
	path string
	done bool
}

func (c *Client) CreateWriter(ctx context.Context, path string) (io.WriteCloser, error) {
	tmp := filesys.Join("/", filesys.Parent("/", path),
		"."+filesys.Base("/", path)+".part-"+strconv.FormatInt(time.Now().UnixNano(), 36))
	f, err := c.sftpClient.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return nil, wrap("create", path, err)
	}
	return &fileWriter{c: c, f: f, tmp: tmp, path: path}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.f.Close(); err != nil {
		w.c.sftpClient.Remove(w.tmp)
		return wrap("close", w.path, err)
	}
	if err := w.c.replace(w.tmp, w.path); err != nil {
		w.c.sftpClient.Remove(w.tmp)
		return wrap("close", w.path, err)
	}
	return nil
}

// Abort drops the uploaded data and leaves path untouched
func (w *fileWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.f.Close()
	return wrap("abort", w.path, w.c.sftpClient.Remove(w.tmp))
}

// replace renames from over to. Servers without posix-rename refuse to
// overwrite, so the old file is removed first there.
func (c *Client) replace(from, to string) error {
	if err := c.sftpClient.PosixRename(from, to); err == nil {
		return nil
	}
	if _, err := c.sftpClient.Lstat(to); err == nil {
		if err := c.sftpClient.Remove(to); err != nil {
			return err
		}
	}
	return c.sftpClient.Rename(from, to)
}

// Rename renames path inside its directory. SFTP servers disagree on
// whether rename replaces the target, so an existing one is reported first.
func (c *Client) Rename(ctx context.Context, path, newName string) error {
	target := filesys.Join("/", filesys.Parent("/", path), newName)
	if _, err := c.sftpClient.Stat(target); err == nil {
		return filesys.NewError("rename", target, filesys.KindConflict, nil)
	}
	if err := c.sftpClient.Rename(path, target); err != nil {
		return wrap("rename", path, err)
	}
	return nil
}

func (c *Client) Mkdir(ctx context.Context, dir, name string) error {
	path := filesys.Join("/", dir, name)
	if _, err := c.sftpClient.Stat(path); err == nil {
		return filesys.NewError("mkdir", path, filesys.KindConflict, nil)
	}
	return wrap("mkdir", path, c.sftpClient.Mkdir(path))
}

func (c *Client) Delete(ctx context.Context, path string, recursive bool) error {
	info, err := c.sftpClient.Stat(path)
	if err != nil {
		return wrap("delete", path, err)
	}
	switch {
	case !info.IsDir():
		err = c.sftpClient.Remove(path)
	case recursive:
		err = c.removeDirectory(ctx, path)
	default:
		err = c.sftpClient.RemoveDirectory(path)
	}
	return wrap("delete", path, err)
}

// removeDirectory removes a directory recursively
func (c *Client) removeDirectory(ctx context.Context, path string) error {
	if path == "/" || path == "" {
		return filesys.NewError("delete", path, filesys.KindPermission, errors.New("refusing to remove root"))
	}

	// rm -rf over the SSH connection is much faster than walking the tree
	if c.sshClient != nil {
		if session, err := c.sshClient.NewSession(); err == nil {
			runErr := session.Run("rm -rf -- " + shellQuote(path))
			session.Close()
			if runErr == nil {
				return nil
			}
			c.logger.Warn("rm -rf failed, walking the tree", "path", path, "err", runErr)
		}
	}
	return c.removeTree(ctx, path)
}

func (c *Client) removeTree(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := c.sftpClient.ReadDir(path)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		child := filesys.Join("/", path, entry.Name())
		if entry.IsDir() {
			err = c.removeTree(ctx, child)
		} else {
			err = c.sftpClient.Remove(child)
		}
		if err != nil && !isNotExist(err) {
			return err
		}
	}

	if err := c.sftpClient.RemoveDirectory(path); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

// shellQuote wraps s in single quotes for a POSIX shell
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || statusCode(err) == fxNoSuchFile
}

func statusCode(err error) uint32 {
	var status *sftp.StatusError
	if errors.As(err, &status) {
		return status.Code
	}
	return 0
}

// wrap classifies SFTP status codes before falling back to filesys.Wrap
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var kind filesys.ErrorKind
	switch statusCode(err) {
	case fxNoSuchFile:
		kind = filesys.KindNotFound
	case fxPermissionDenied:
		kind = filesys.KindPermission
	case fxFileExists:
		kind = filesys.KindConflict
	case fxNoConnection, fxConnectionLost:
		kind = filesys.KindConnectionLost
	case fxNoSpace, fxQuotaExceeded:
		kind = filesys.KindDiskFull
	case fxFailure:
		kind = filesys.KindTransport
	default:
		if errors.Is(err, sftp.ErrSSHFxConnectionLost) || errors.Is(err, sftp.ErrSSHFxNoConnection) {
			return filesys.NewError(op, path, filesys.KindConnectionLost, err)
		}
		return filesys.Wrap(op, path, err)
	}
	return filesys.NewError(op, path, kind, err)
}
