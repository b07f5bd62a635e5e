package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/metrics"
	"github.com/quocson95/ferry/pkg/remote"
	"github.com/quocson95/ferry/pkg/storage"
	"github.com/quocson95/ferry/pkg/tui"
	"golang.org/x/term"
)

type options struct {
	host      string
	list      bool
	save      bool
	name      string
	localDir  string
	remoteDir string

	// ad-hoc sftp
	addr         string
	port         int
	user         string
	key          string
	askPassword  bool
	trustNewHost bool

	// ad-hoc s3
	bucket    string
	endpoint  string
	region    string
	accessKey string

	metricsAddr string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.host, "host", "", "saved host to open")
	flag.BoolVar(&o.list, "list", false, "list saved hosts and exit")
	flag.BoolVar(&o.save, "save", false, "save the host given by the flags under -name and exit")
	flag.StringVar(&o.name, "name", "", "name of the host to save")
	flag.StringVar(&o.localDir, "local", "", "start directory of the local pane")
	flag.StringVar(&o.remoteDir, "remote", "", "start directory of the remote pane")

	flag.StringVar(&o.addr, "addr", "", "sftp server address")
	flag.IntVar(&o.port, "port", 0, "sftp server port")
	flag.StringVar(&o.user, "user", "", "sftp user")
	flag.StringVar(&o.key, "key", "", "private key file")
	flag.BoolVar(&o.askPassword, "password", false, "prompt for the sftp password")
	flag.BoolVar(&o.trustNewHost, "trust-new-hosts", false, "record host keys of unknown servers")

	flag.StringVar(&o.bucket, "s3-bucket", "", "s3 bucket")
	flag.StringVar(&o.endpoint, "s3-endpoint", "", "s3 endpoint for compatible services")
	flag.StringVar(&o.region, "s3-region", "", "s3 region")
	flag.StringVar(&o.accessKey, "s3-access-key", "", "s3 access key, the secret is read from AWS_SECRET_ACCESS_KEY or prompted")

	flag.StringVar(&o.metricsAddr, "metrics", "", "serve prometheus metrics on this address")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("Error getting home directory", err)
	}
	dataDir := filepath.Join(homeDir, ".ferry")
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fatal("Error creating data directory", err)
	}

	logFile, err := os.OpenFile(
		filepath.Join(dataDir, "debug.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0600,
	)
	if err != nil {
		fatal("Error opening log file", err)
	}
	defer logFile.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, nil)))

	settingsStore, err := storage.NewSettingsStore(dataDir)
	if err != nil {
		fatal("Error loading settings", err)
	}
	store, err := storage.NewStore(dataDir)
	if err != nil {
		fatal("Error loading hosts", err)
	}
	settings := settingsStore.Get()

	if opts.list {
		for _, h := range store.List() {
			fmt.Printf("%-20s %-5s %s\n", h.Name, h.Protocol, describe(h))
		}
		return
	}

	if addr := firstNonEmpty(opts.metricsAddr, settings.MetricsAddr); addr != "" {
		serveMetrics(addr)
	}

	connectOpts := remote.Options{
		DefaultPort:       settings.DefaultPort,
		TrustUnknownHosts: settings.TrustUnknownHosts || opts.trustNewHost,
	}
	connector := func(ctx context.Context, host *storage.Host, creds remote.Credentials) (*remote.Remote, error) {
		return remote.Open(ctx, host, creds, connectOpts)
	}

	if opts.save {
		if err := saveHost(opts, settingsStore, store); err != nil {
			fatal("Error saving host", err)
		}
		fmt.Printf("Saved %s\n", opts.name)
		return
	}

	if opts.host == "" && opts.addr == "" && opts.bucket == "" {
		app := tui.NewAppModel(tui.AppConfig{
			Store:    store,
			Settings: settingsStore,
			Local:    filesys.NewLocal(),
			LocalDir: opts.localDir,
			Connect:  connector,
		})
		defer app.Close()
		run(app)
		return
	}

	host, creds, err := resolveHost(opts, settingsStore, store)
	if err != nil {
		fatal("Error resolving host", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	r, err := connector(ctx, host, creds)
	cancel()
	if err != nil {
		fatal("Error connecting to "+host.Name, err)
	}
	defer r.Close()

	remoteDir := firstNonEmpty(opts.remoteDir, r.StartDir)
	browser := tui.NewBrowserModel(context.Background(), tui.BrowserConfig{
		Local:     filesys.NewLocal(),
		Remote:    r.FS,
		Host:      r.Descriptor,
		LocalDir:  opts.localDir,
		RemoteDir: remoteDir,
		Settings:  settingsStore,
	})
	defer browser.Close()
	run(browser)
}

func run(model tea.Model) {
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fatal("Error running program", err)
	}
}

func serveMetrics(addr string) {
	metricsServer := &http.Server{
		Addr:    addr,
		Handler: metrics.Handler(),
	}
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// adHocHost builds a host from the command line
func adHocHost(opts options, defaultUser string) (*storage.Host, error) {
	name := firstNonEmpty(opts.name, opts.addr, opts.bucket)
	var host *storage.Host
	switch {
	case opts.bucket != "":
		host = &storage.Host{
			Name:      name,
			Protocol:  storage.ProtocolS3,
			Endpoint:  opts.endpoint,
			Region:    opts.region,
			Bucket:    opts.bucket,
			AccessKey: firstNonEmpty(opts.accessKey, os.Getenv("AWS_ACCESS_KEY_ID")),
			StartDir:  opts.remoteDir,
		}
	case opts.addr != "":
		host = &storage.Host{
			Name:       name,
			Protocol:   storage.ProtocolSFTP,
			Address:    opts.addr,
			Port:       opts.port,
			Username:   firstNonEmpty(opts.user, defaultUser),
			PrivateKey: opts.key,
			StartDir:   opts.remoteDir,
		}
	default:
		return nil, errors.New("either -addr or -s3-bucket is required")
	}
	if err := host.Validate(); err != nil {
		return nil, err
	}
	return host, nil
}

// adHocSecret reads the password or secret key the flags ask for
func adHocSecret(opts options, host *storage.Host) (string, error) {
	if host.Protocol == storage.ProtocolS3 {
		if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
			return secret, nil
		}
		return promptPassword("Secret access key: ")
	}
	if opts.askPassword {
		return promptPassword(fmt.Sprintf("%s@%s's password: ", host.Username, host.Address))
	}
	return "", nil
}

func resolveHost(opts options, settingsStore *storage.SettingsStore, store *storage.Store) (*storage.Host, remote.Credentials, error) {
	if opts.host == "" {
		host, err := adHocHost(opts, settingsStore.Get().DefaultUsername)
		if err != nil {
			return nil, remote.Credentials{}, err
		}
		secret, err := adHocSecret(opts, host)
		return host, remote.Credentials{Secret: secret}, err
	}

	host, err := store.FindByName(opts.host)
	if err != nil {
		return nil, remote.Credentials{}, err
	}
	var master string
	if host.Sealed() {
		if master, err = unlock(settingsStore); err != nil {
			return nil, remote.Credentials{}, err
		}
	}
	secret, keyContent, err := host.Unseal(master)
	if err != nil {
		return nil, remote.Credentials{}, err
	}
	return host, remote.Credentials{Secret: secret, KeyContent: keyContent}, nil
}

func saveHost(opts options, settingsStore *storage.SettingsStore, store *storage.Store) error {
	if opts.name == "" {
		return errors.New("-name is required")
	}
	host, err := adHocHost(opts, settingsStore.Get().DefaultUsername)
	if err != nil {
		return err
	}
	if host.Secret, err = adHocSecret(opts, host); err != nil {
		return err
	}
	if !settingsStore.HasMasterPassword() {
		return store.Add(host)
	}

	master, err := unlock(settingsStore)
	if err != nil {
		return err
	}
	var keyContent []byte
	if host.PrivateKey != "" {
		if keyContent, err = os.ReadFile(host.PrivateKey); err != nil {
			return fmt.Errorf("failed to read private key: %w", err)
		}
		host.PrivateKey = ""
	}
	if err := host.Seal(keyContent, master); err != nil {
		return err
	}
	return store.Add(host)
}

// unlock prompts for the master password until it verifies, three times at most
func unlock(settingsStore *storage.SettingsStore) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		password, err := promptPassword("Master password: ")
		if err != nil {
			return "", err
		}
		if settingsStore.VerifyMasterPassword(password) {
			return password, nil
		}
		fmt.Fprintln(os.Stderr, "Wrong master password.")
	}
	return "", storage.ErrWrongPassword
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func describe(h *storage.Host) string {
	if h.Protocol == storage.ProtocolS3 {
		return firstNonEmpty(h.Endpoint, "aws") + "/" + h.Bucket
	}
	return fmt.Sprintf("%s@%s:%d", h.Username, h.Address, h.Port)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
