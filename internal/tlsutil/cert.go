// Package tlsutil provides TLS certificate management and a listener
// that serves TLS and plaintext on the same port.
package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	certFileName = "server.crt"
	keyFileName  = "server.key"
)

// CertificateManager loads a configured certificate pair or falls back
// to a generated self-signed certificate cached under storeDir.
type CertificateManager struct {
	certFile string
	keyFile  string
	storeDir string
}

// NewCertificateManager creates a certificate manager. certFile and
// keyFile take precedence when both are set.
func NewCertificateManager(certFile, keyFile, storeDir string) *CertificateManager {
	return &CertificateManager{
		certFile: certFile,
		keyFile:  keyFile,
		storeDir: storeDir,
	}
}

// Certificate returns the TLS certificate to serve with. Explicitly
// configured files must load; otherwise a cached or freshly generated
// self-signed certificate is used when autoGenerate is set.
func (m *CertificateManager) Certificate(autoGenerate bool) (*tls.Certificate, error) {
	if m.certFile != "" && m.keyFile != "" {
		cert, err := tls.LoadX509KeyPair(m.certFile, m.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate from %s and %s: %w", m.certFile, m.keyFile, err)
		}
		return &cert, nil
	}

	cachedCert := filepath.Join(m.storeDir, certFileName)
	cachedKey := filepath.Join(m.storeDir, keyFileName)
	if cert, err := tls.LoadX509KeyPair(cachedCert, cachedKey); err == nil {
		return &cert, nil
	}

	if !autoGenerate {
		return nil, fmt.Errorf("no TLS certificate found and auto-generation is disabled")
	}

	return m.generate()
}

// Paths returns the locations of the active certificate pair
func (m *CertificateManager) Paths() (certPath, keyPath string) {
	if m.certFile != "" && m.keyFile != "" {
		return m.certFile, m.keyFile
	}
	return filepath.Join(m.storeDir, certFileName), filepath.Join(m.storeDir, keyFileName)
}

// generate creates a self-signed ECDSA certificate valid for one year
// for localhost and every local interface address, and caches the PEM
// pair under storeDir.
func (m *CertificateManager) generate() (*tls.Certificate, error) {
	if err := os.MkdirAll(m.storeDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create certificate store directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"apitrail"},
			CommonName:   "apitrail self-signed",
		},
		NotBefore:             now,
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
	template.IPAddresses = append(template.IPAddresses, localIPs()...)

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(filepath.Join(m.storeDir, certFileName), certPEM, 0644); err != nil {
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.storeDir, keyFileName), keyPEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to save private key: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}
	return &cert, nil
}

func localIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			ips = append(ips, ipnet.IP)
		}
	}
	return ips
}
