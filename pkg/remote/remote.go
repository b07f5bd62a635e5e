// Package remote opens the filesystem behind the remote pane of a saved host.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/s3"
	"github.com/quocson95/ferry/pkg/session"
	"github.com/quocson95/ferry/pkg/sftp"
	"github.com/quocson95/ferry/pkg/ssh"
	"github.com/quocson95/ferry/pkg/storage"
)

// Remote is an open remote side
type Remote struct {
	FS         filesys.Filesystem
	Descriptor session.RemoteHostDescriptor
	StartDir   string

	closers []func() error
}

// Close releases the connection
func (r *Remote) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Credentials are the decrypted secrets of a host
type Credentials struct {
	Secret     string // password or secret access key
	KeyContent []byte // private key, when stored encrypted
}

// Options tune how a host is opened
type Options struct {
	DefaultPort       int
	TrustUnknownHosts bool
	KnownHostsPath    string
	Logger            *slog.Logger
}

// Open connects to host
func Open(ctx context.Context, host *storage.Host, creds Credentials, opts Options) (*Remote, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("host", host.Name, "protocol", host.Protocol)

	switch host.Protocol {
	case storage.ProtocolSFTP:
		return openSFTP(ctx, host, creds, opts, logger)
	case storage.ProtocolS3:
		return openS3(ctx, host, creds, logger)
	default:
		return nil, fmt.Errorf("unknown protocol %q", host.Protocol)
	}
}

func openSFTP(ctx context.Context, host *storage.Host, creds Credentials, opts Options, logger *slog.Logger) (*Remote, error) {
	port := resolvePort(host.Port, opts.DefaultPort)

	cfg := &ssh.SSHConfig{
		Host:              host.Address,
		Port:              port,
		Username:          host.Username,
		Password:          creds.Secret,
		PrivateKey:        host.PrivateKey,
		KnownHostsPath:    opts.KnownHostsPath,
		TrustUnknownHosts: opts.TrustUnknownHosts,
	}
	if len(creds.KeyContent) > 0 {
		cfg.PrivateKey = ""
		cfg.KeyContent = creds.KeyContent
	} else if err := cfg.LoadPrivateKey(); err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}

	sshClient := ssh.NewClient(cfg, logger)
	if err := sshClient.Connect(ctx); err != nil {
		return nil, err
	}
	sftpClient, err := sftp.NewClient(sshClient.GetRawClient(), logger)
	if err != nil {
		sshClient.Close()
		return nil, err
	}
	logger.Info("connected", "addr", cfg.Address())

	return &Remote{
		FS: sftpClient,
		Descriptor: session.RemoteHostDescriptor{
			Name:      host.Name,
			Protocol:  storage.ProtocolSFTP,
			Address:   net.JoinHostPort(host.Address, strconv.Itoa(port)),
			User:      host.Username,
			Separator: sftpClient.Separator(),
		},
		StartDir: host.StartDir,
		closers:  []func() error{sshClient.Close, sftpClient.Close},
	}, nil
}

// resolvePort picks the host's port, then the configured default, then 22
func resolvePort(port, defaultPort int) int {
	switch {
	case port > 0:
		return port
	case defaultPort > 0:
		return defaultPort
	default:
		return 22
	}
}

func openS3(ctx context.Context, host *storage.Host, creds Credentials, logger *slog.Logger) (*Remote, error) {
	client, err := s3.NewClient(ctx, s3.Config{
		Endpoint:  host.Endpoint,
		Region:    host.Region,
		Bucket:    host.Bucket,
		AccessKey: host.AccessKey,
		SecretKey: creds.Secret,
	}, logger)
	if err != nil {
		return nil, err
	}

	address := host.Endpoint
	switch {
	case address != "":
	case host.Region != "":
		address = "s3." + host.Region + ".amazonaws.com"
	default:
		address = "s3.amazonaws.com"
	}
	logger.Info("connected", "bucket", host.Bucket)

	return &Remote{
		FS: client,
		Descriptor: session.RemoteHostDescriptor{
			Name:      host.Name,
			Protocol:  storage.ProtocolS3,
			Address:   address + "/" + host.Bucket,
			User:      host.AccessKey,
			Separator: client.Separator(),
		},
		StartDir: host.StartDir,
	}, nil
}
