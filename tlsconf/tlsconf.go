// Package tlsconf builds and validates hardened server TLS configurations.
//
// A hardened configuration pins TLS 1.2, offers only ECDHE key exchange with
// AEAD ciphers over P-256, disables session tickets and renegotiation, and
// either requires and verifies client certificates or explicitly allows
// unauthenticated clients. Optional client verification is never accepted.
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("tlsconf: invalid config")

// Version is the only protocol version negotiated.
const Version = tls.VersionTLS12

// Curve is the only key exchange curve offered.
const Curve = tls.CurveP256

// CipherSuites is the hardened cipher list. All suites use ECDHE with AEAD.
var CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
}

// Config describes where the server credentials and client CAs live.
// All paths must be absolute and normalized.
type Config struct {
	CertFile string `env:"TLS_CERT_FILE"`
	KeyFile  string `env:"TLS_KEY_FILE"`

	// CAFile and CAPath verify client certificates. At least one is
	// required unless AllowUnauthenticatedClients is set, in which case
	// neither may be given.
	CAFile string `env:"TLS_CA_FILE"`
	CAPath string `env:"TLS_CA_PATH"`

	AllowUnauthenticatedClients bool `env:"TLS_ALLOW_UNAUTHENTICATED_CLIENTS" envDefault:"false"`
}

// Enabled reports whether any server credential is configured.
func (c Config) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// Build loads the credentials named by cfg and returns a hardened server
// configuration that passes Validate.
//
// Parameters:
//   - cfg: Server key pair and client CA locations; all paths absolute
//
// Returns:
//   - A *tls.Config requiring verified client certificates, or accepting
//     none when cfg.AllowUnauthenticatedClients is set
//   - An error wrapping ErrInvalidConfig if a path is bad or a file cannot
//     be loaded
func Build(cfg Config) (*tls.Config, error) {
	if err := checkPath("cert_file", cfg.CertFile); err != nil {
		return nil, err
	}
	if err := checkPath("key_file", cfg.KeyFile); err != nil {
		return nil, err
	}

	if cfg.AllowUnauthenticatedClients {
		if cfg.CAFile != "" || cfg.CAPath != "" {
			return nil, fmt.Errorf("%w: ca_file/ca_path cannot be used with allow_unauthenticated_clients", ErrInvalidConfig)
		}
	} else {
		if cfg.CAFile == "" && cfg.CAPath == "" {
			return nil, fmt.Errorf("%w: must provide ca_file or ca_path, or set allow_unauthenticated_clients", ErrInvalidConfig)
		}
		if cfg.CAFile != "" {
			if err := checkPath("ca_file", cfg.CAFile); err != nil {
				return nil, err
			}
		}
		if cfg.CAPath != "" {
			if err := checkPath("ca_path", cfg.CAPath); err != nil {
				return nil, err
			}
		}
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: load key pair: %w", ErrInvalidConfig, err)
	}

	tc := &tls.Config{
		MinVersion:             Version,
		MaxVersion:             Version,
		CipherSuites:           slices.Clone(CipherSuites),
		CurvePreferences:       []tls.CurveID{Curve},
		SessionTicketsDisabled: true,
		Renegotiation:          tls.RenegotiateNever,
		Certificates:           []tls.Certificate{cert},
		ClientAuth:             tls.NoClientCert,
	}
	if !cfg.AllowUnauthenticatedClients {
		pool, err := loadClientCAs(cfg.CAFile, cfg.CAPath)
		if err != nil {
			return nil, err
		}
		tc.ClientCAs = pool
		tc.ClientAuth = tls.RequireAndVerifyClientCert
	}

	if err := Validate(tc); err != nil {
		return nil, err
	}
	return tc, nil
}

// Validate checks that tc is a hardened server configuration. It accepts
// configurations not produced by Build and holds them to the same rules.
//
// Parameters:
//   - tc: The server configuration to check
//
// Returns:
//   - nil if tc is hardened, otherwise an error wrapping ErrInvalidConfig
//     naming the first violation
func Validate(tc *tls.Config) error {
	if tc == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if tc.MinVersion != Version || tc.MaxVersion != Version {
		return fmt.Errorf("%w: protocol must be pinned to %s; got min %s, max %s",
			ErrInvalidConfig, tls.VersionName(Version), tls.VersionName(tc.MinVersion), tls.VersionName(tc.MaxVersion))
	}

	switch tc.ClientAuth {
	case tls.NoClientCert:
		if tc.ClientCAs != nil {
			return fmt.Errorf("%w: client CAs cannot be used without client verification", ErrInvalidConfig)
		}
	case tls.RequireAndVerifyClientCert:
		if tc.ClientCAs == nil {
			return fmt.Errorf("%w: client verification requires client CAs", ErrInvalidConfig)
		}
	case tls.VerifyClientCertIfGiven, tls.RequestClientCert:
		return fmt.Errorf("%w: client certificate verification cannot be optional", ErrInvalidConfig)
	case tls.RequireAnyClientCert:
		return fmt.Errorf("%w: client certificates must be verified", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown client auth mode %d", ErrInvalidConfig, tc.ClientAuth)
	}

	if len(tc.CipherSuites) == 0 {
		return fmt.Errorf("%w: cipher suites must be set explicitly", ErrInvalidConfig)
	}
	for _, id := range tc.CipherSuites {
		if !slices.Contains(CipherSuites, id) {
			return fmt.Errorf("%w: cipher suite not allowed: %s", ErrInvalidConfig, tls.CipherSuiteName(id))
		}
	}
	if !slices.Equal(tc.CurvePreferences, []tls.CurveID{Curve}) {
		return fmt.Errorf("%w: curve preferences must be exactly %s", ErrInvalidConfig, Curve)
	}
	if !tc.SessionTicketsDisabled {
		return fmt.Errorf("%w: session tickets must be disabled", ErrInvalidConfig)
	}
	if tc.Renegotiation != tls.RenegotiateNever {
		return fmt.Errorf("%w: renegotiation must be disabled", ErrInvalidConfig)
	}
	if len(tc.Certificates) == 0 && tc.GetCertificate == nil {
		return fmt.Errorf("%w: server certificate required", ErrInvalidConfig)
	}
	return nil
}

func checkPath(name, p string) error {
	if p == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, name)
	}
	if !filepath.IsAbs(p) || filepath.Clean(p) != p {
		return fmt.Errorf("%w: %s is not absolute and normalized: %q", ErrInvalidConfig, name, p)
	}
	return nil
}

func loadClientCAs(caFile, caPath string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read ca_file: %w", ErrInvalidConfig, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in ca_file %q", ErrInvalidConfig, caFile)
		}
	}
	if caPath != "" {
		entries, err := os.ReadDir(caPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read ca_path: %w", ErrInvalidConfig, err)
		}
		added := 0
		for _, e := range entries {
			name := filepath.Join(caPath, e.Name())
			// follows the <hash>.0 symlinks of a rehashed CA directory
			fi, err := os.Stat(name)
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
			pem, err := os.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("%w: read ca_path: %w", ErrInvalidConfig, err)
			}
			if pool.AppendCertsFromPEM(pem) {
				added++
			}
		}
		if added == 0 {
			return nil, fmt.Errorf("%w: no certificates in ca_path %q", ErrInvalidConfig, caPath)
		}
	}
	return pool, nil
}
