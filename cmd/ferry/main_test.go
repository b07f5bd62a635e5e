package main

import (
	"testing"

	"github.com/quocson95/ferry/pkg/storage"
)

func TestAdHocHost(t *testing.T) {
	t.Run("SFTP falls back to the default user", func(t *testing.T) {
		host, err := adHocHost(options{addr: "10.0.0.5", port: 2222}, "deploy")
		if err != nil {
			t.Fatalf("adHocHost failed: %v", err)
		}
		if host.Protocol != storage.ProtocolSFTP || host.Username != "deploy" || host.Name != "10.0.0.5" || host.Port != 2222 {
			t.Errorf("Unexpected host %+v", host)
		}
	})

	t.Run("S3 access key from the environment", func(t *testing.T) {
		t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
		host, err := adHocHost(options{bucket: "backups", region: "eu-west-1", name: "archive"}, "")
		if err != nil {
			t.Fatalf("adHocHost failed: %v", err)
		}
		if host.Protocol != storage.ProtocolS3 || host.AccessKey != "AKIAEXAMPLE" || host.Name != "archive" {
			t.Errorf("Unexpected host %+v", host)
		}
	})

	t.Run("Missing target", func(t *testing.T) {
		if _, err := adHocHost(options{}, "deploy"); err == nil {
			t.Error("Expected an error without -addr or -s3-bucket")
		}
	})

	t.Run("Missing user", func(t *testing.T) {
		if _, err := adHocHost(options{addr: "10.0.0.5"}, ""); err == nil {
			t.Error("Expected a validation error without a user")
		}
	})
}

func TestSaveHostWithoutMasterPassword(t *testing.T) {
	dataDir := t.TempDir()
	settings, err := storage.NewSettingsStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}

	if err := saveHost(options{addr: "10.0.0.5"}, settings, store); err == nil {
		t.Fatal("Expected an error without -name")
	}

	opts := options{name: "staging", addr: "10.0.0.5", user: "ops", remoteDir: "/srv"}
	if err := saveHost(opts, settings, store); err != nil {
		t.Fatalf("saveHost failed: %v", err)
	}
	host, err := store.FindByName("staging")
	if err != nil {
		t.Fatalf("Saved host not found: %v", err)
	}
	if host.Username != "ops" || host.StartDir != "/srv" || host.Sealed() {
		t.Errorf("Unexpected saved host %+v", host)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		host *storage.Host
		want string
	}{
		{&storage.Host{Protocol: storage.ProtocolSFTP, Username: "u", Address: "h", Port: 22}, "u@h:22"},
		{&storage.Host{Protocol: storage.ProtocolS3, Bucket: "b"}, "aws/b"},
		{&storage.Host{Protocol: storage.ProtocolS3, Endpoint: "http://minio:9000", Bucket: "b"}, "http://minio:9000/b"},
	}
	for _, tt := range tests {
		if got := describe(tt.host); got != tt.want {
			t.Errorf("describe() = %q, want %q", got, tt.want)
		}
	}
	if got := firstNonEmpty("", "", "x", "y"); got != "x" {
		t.Errorf("firstNonEmpty() = %q", got)
	}
}
