package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	pkgsftp "github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"

	"github.com/quocson95/ferry/pkg/storage"
)

// startSFTPServer serves an in-memory SFTP subsystem to user "deploy" with
// password "secret" and returns the listening port
func startSFTPServer(t *testing.T) int {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := gossh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &gossh.ServerConfig{
		PasswordCallback: func(c gossh.ConnMetadata, pass []byte) (*gossh.Permissions, error) {
			if c.User() == "deploy" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(nc, cfg)
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

func serveConn(nc net.Conn, cfg *gossh.ServerConfig) {
	_, chans, reqs, err := gossh.NewServerConn(nc, cfg)
	if err != nil {
		nc.Close()
		return
	}
	go gossh.DiscardRequests(reqs)
	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(gossh.UnknownChannelType, "session only")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range chReqs {
				ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
				req.Reply(ok, nil)
				if ok {
					server := pkgsftp.NewRequestServer(ch, pkgsftp.InMemHandler())
					go func() {
						server.Serve()
						server.Close()
					}()
				}
			}
		}()
	}
}

func TestOpenSFTP(t *testing.T) {
	port := startSFTPServer(t)
	host := &storage.Host{
		Name:     "mirror",
		Protocol: storage.ProtocolSFTP,
		Address:  "127.0.0.1",
		Username: "deploy",
		StartDir: "/srv",
	}
	opts := Options{
		DefaultPort:       port,
		TrustUnknownHosts: true,
		KnownHostsPath:    filepath.Join(t.TempDir(), "known_hosts"),
	}

	r, err := Open(context.Background(), host, Credentials{Secret: "secret"}, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	want := "127.0.0.1:" + strconv.Itoa(port)
	if r.Descriptor.Address != want || r.Descriptor.Separator != "/" || r.Descriptor.User != "deploy" {
		t.Errorf("Unexpected descriptor %+v", r.Descriptor)
	}
	if r.StartDir != "/srv" {
		t.Errorf("Expected start dir /srv, got %q", r.StartDir)
	}

	ctx := context.Background()
	if err := r.FS.Mkdir(ctx, "/", "srv"); err != nil {
		t.Fatalf("Mkdir over the connection failed: %v", err)
	}
	entries, err := r.FS.List(ctx, "/")
	if err != nil || len(entries) != 1 || entries[0].Name != "srv" {
		t.Errorf("Unexpected listing %+v %v", entries, err)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := r.FS.List(ctx, "/"); err == nil {
		t.Error("Expected listing to fail after Close")
	}

	t.Run("Wrong password", func(t *testing.T) {
		if _, err := Open(context.Background(), host, Credentials{Secret: "nope"}, opts); err == nil {
			t.Error("Expected authentication failure")
		}
	})
}

func TestResolvePort(t *testing.T) {
	tests := []struct {
		name              string
		port, defaultPort int
		want              int
	}{
		{"Host port wins", 2222, 2200, 2222},
		{"Configured default", 0, 2200, 2200},
		{"Fallback to 22", 0, 0, 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolvePort(tt.port, tt.defaultPort); got != tt.want {
				t.Errorf("resolvePort(%d, %d) = %d, want %d", tt.port, tt.defaultPort, got, tt.want)
			}
		})
	}
}

func TestOpenS3Descriptor(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_DEFAULT_PROFILE", "")

	tests := []struct {
		name     string
		endpoint string
		region   string
		want     string
	}{
		{"Custom endpoint", "http://minio:9000", "", "http://minio:9000/backups"},
		{"Regional AWS", "", "eu-west-1", "s3.eu-west-1.amazonaws.com/backups"},
		{"Global AWS", "", "", "s3.amazonaws.com/backups"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &storage.Host{
				Name:      "archive",
				Protocol:  storage.ProtocolS3,
				Endpoint:  tt.endpoint,
				Region:    tt.region,
				Bucket:    "backups",
				AccessKey: "AKIAEXAMPLE",
			}
			r, err := Open(context.Background(), host, Credentials{Secret: "shh"}, Options{})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer r.Close()
			if r.Descriptor.Address != tt.want || r.Descriptor.Separator != "/" {
				t.Errorf("Unexpected descriptor %+v", r.Descriptor)
			}
		})
	}

	t.Run("Missing secret", func(t *testing.T) {
		host := &storage.Host{Name: "x", Protocol: storage.ProtocolS3, Bucket: "b", AccessKey: "k"}
		if _, err := Open(context.Background(), host, Credentials{}, Options{}); err == nil {
			t.Error("Expected an error without a secret key")
		}
	})
}

func TestOpenUnknownProtocol(t *testing.T) {
	_, err := Open(context.Background(), &storage.Host{Name: "x", Protocol: "ftp"}, Credentials{}, Options{})
	if err == nil || !strings.Contains(err.Error(), "unknown protocol") {
		t.Errorf("Expected unknown protocol error, got %v", err)
	}
}

func TestCloseOrder(t *testing.T) {
	var order []string
	errSFTP := errors.New("sftp close failed")
	errSSH := errors.New("ssh close failed")
	r := &Remote{closers: []func() error{
		func() error { order = append(order, "ssh"); return errSSH },
		func() error { order = append(order, "sftp"); return errSFTP },
	}}

	err := r.Close()
	if !reflect.DeepEqual(order, []string{"sftp", "ssh"}) {
		t.Errorf("Expected sftp closed before ssh, got %v", order)
	}
	if !errors.Is(err, errSFTP) || !errors.Is(err, errSSH) {
		t.Errorf("Expected both errors joined, got %v", err)
	}

	if err := (&Remote{}).Close(); err != nil {
		t.Errorf("Close without closers = %v", err)
	}
}
