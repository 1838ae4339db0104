package crypto

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

// Fingerprint returns the hex SHA-256 of a DER certificate
func Fingerprint(der []byte) string {
	hash := sha256.Sum256(der)
	return hex.EncodeToString(hash[:])
}

// CertificateInfo identifies a certificate in logs without exposing key material.
type CertificateInfo struct {
	Subject     string
	Fingerprint string
}

// DescribePEM parses every CERTIFICATE block in a PEM bundle.
// Blocks of other types are skipped.
func DescribePEM(bundle []byte) ([]CertificateInfo, error) {
	var infos []CertificateInfo
	for {
		var block *pem.Block
		block, bundle = pem.Decode(bundle)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		infos = append(infos, CertificateInfo{
			Subject:     cert.Subject.String(),
			Fingerprint: Fingerprint(block.Bytes),
		})
	}

	if len(infos) == 0 {
		return nil, fmt.Errorf("failed to parse PEM block")
	}
	return infos, nil
}
