package httpserver_test

import (
	"crypto/tls"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/AmmannChristian/go-shellauth/httpserver"
	"github.com/AmmannChristian/go-shellauth/internal/testutil"
)

func TestTLSFiles_Config(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	caFile := filepath.Join(dir, "ca.crt")
	testutil.WriteTestCertAndKey(t, certFile, keyFile)
	testutil.WriteTestCACert(t, caFile)

	tests := []struct {
		name     string
		files    httpserver.TLSFiles
		wantErr  bool
		wantMTLS bool
	}{
		{name: "missing cert file", files: httpserver.TLSFiles{KeyFile: keyFile}, wantErr: true},
		{name: "missing key file", files: httpserver.TLSFiles{CertFile: certFile}, wantErr: true},
		{name: "nonexistent files", files: httpserver.TLSFiles{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}, wantErr: true},
		{name: "mismatched pair", files: httpserver.TLSFiles{CertFile: certFile, KeyFile: certFile}, wantErr: true},
		{name: "invalid CA", files: httpserver.TLSFiles{CertFile: certFile, KeyFile: keyFile, ClientCAFile: keyFile}, wantErr: true},
		{name: "server TLS", files: httpserver.TLSFiles{CertFile: certFile, KeyFile: keyFile}},
		{name: "mutual TLS", files: httpserver.TLSFiles{CertFile: certFile, KeyFile: keyFile, ClientCAFile: caFile}, wantMTLS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.files.Config()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Config() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if cfg.MinVersion != tls.VersionTLS12 {
				t.Errorf("expected TLS 1.2 minimum, got %x", cfg.MinVersion)
			}
			if len(cfg.Certificates) != 1 {
				t.Errorf("expected one certificate, got %d", len(cfg.Certificates))
			}
			if tt.wantMTLS != (cfg.ClientAuth == tls.RequireAndVerifyClientCert) {
				t.Errorf("unexpected client auth %v", cfg.ClientAuth)
			}
		})
	}
}

func TestTLSFiles_Enabled(t *testing.T) {
	if (httpserver.TLSFiles{}).Enabled() {
		t.Error("empty files should not enable TLS")
	}
	if !(httpserver.TLSFiles{CertFile: "a", KeyFile: "b"}).Enabled() {
		t.Error("cert and key should enable TLS")
	}
}

func TestConfigureServer(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	testutil.WriteTestCertAndKey(t, certFile, keyFile)

	if err := httpserver.ConfigureServer(nil, httpserver.TLSFiles{CertFile: certFile, KeyFile: keyFile}); err == nil {
		t.Error("expected error for nil server")
	}

	server := &http.Server{}
	if err := httpserver.ConfigureServer(server, httpserver.TLSFiles{CertFile: certFile, KeyFile: keyFile}); err != nil {
		t.Fatalf("ConfigureServer failed: %v", err)
	}
	if server.TLSConfig == nil {
		t.Error("expected TLS config to be set")
	}
}
