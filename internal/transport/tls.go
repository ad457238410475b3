package transport

import (
	"crypto/tls"
	"os"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/agentstation/membersync/pkg/errors"
)

// LoadPKCS12 reads a PKCS#12 (.p12/.pfx) bundle protected by password and
// returns it as a TLS client certificate. Intermediates in the bundle are
// sent along with the leaf.
func LoadPKCS12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, errors.NewConfigError("certificate.file", "cannot read certificate", err)
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return tls.Certificate{}, errors.NewConfigError("certificate.password", "cannot decode certificate bundle", err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, ca := range chain {
		cert.Certificate = append(cert.Certificate, ca.Raw)
	}
	return cert, nil
}

// ClientTLSConfig builds a TLS configuration presenting the PKCS#12
// client certificate at path. An empty path yields a nil config.
func ClientTLSConfig(path, password string) (*tls.Config, error) {
	if path == "" {
		return nil, nil
	}
	cert, err := LoadPKCS12(path, password)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
