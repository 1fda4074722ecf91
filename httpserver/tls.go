package httpserver

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// TLSFiles names the PEM files for serving HTTPS.
type TLSFiles struct {
	CertFile string // server certificate
	KeyFile  string // server private key

	// ClientCAFile enables mutual TLS: client certificates must chain to it.
	ClientCAFile string
}

// Enabled reports whether a certificate and key were configured.
func (f TLSFiles) Enabled() bool {
	return f.CertFile != "" || f.KeyFile != ""
}

// Config loads the files into a *tls.Config requiring TLS 1.2 or later.
func (f TLSFiles) Config() (*tls.Config, error) {
	if f.CertFile == "" {
		return nil, errors.New("httpserver: server certificate file is required")
	}
	if f.KeyFile == "" {
		return nil, errors.New("httpserver: server key file is required")
	}

	certPEM, err := readTLSFile(f.CertFile)
	if err != nil {
		return nil, fmt.Errorf("httpserver: read certificate file: %w", err)
	}
	keyPEM, err := readTLSFile(f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("httpserver: read key file: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("httpserver: load server certificate: %w", err)
	}

	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	if f.ClientCAFile != "" {
		caPEM, err := readTLSFile(f.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("httpserver: read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("httpserver: failed to parse CA certificate")
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return cfg, nil
}

// ConfigureServer sets server.TLSConfig from f. Serve with
// server.ListenAndServeTLS("", "").
func ConfigureServer(server *http.Server, f TLSFiles) error {
	if server == nil {
		return errors.New("httpserver: server is nil")
	}
	cfg, err := f.Config()
	if err != nil {
		return err
	}
	server.TLSConfig = cfg
	return nil
}

// readTLSFile reads path through os.OpenInRoot rooted at its directory.
func readTLSFile(path string) ([]byte, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}

	f, err := os.OpenInRoot(filepath.Dir(abs), filepath.Base(abs))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
