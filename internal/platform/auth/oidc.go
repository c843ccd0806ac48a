package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// discoveryDocument is the part of an OpenID Connect discovery document
// the verifier reads.
type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// discoverJWKSURI reads <issuer>/.well-known/openid-configuration. The
// document must name the same issuer the tokens are checked against.
func discoverJWKSURI(client *http.Client, issuer string) (string, error) {
	issuer = strings.TrimRight(issuer, "/")
	resp, err := client.Get(issuer + "/.well-known/openid-configuration")
	if err != nil {
		return "", fmt.Errorf("fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode discovery document: %w", err)
	}
	if doc.Issuer != "" && strings.TrimRight(doc.Issuer, "/") != issuer {
		return "", fmt.Errorf("discovery document issuer %q does not match %q", doc.Issuer, issuer)
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("discovery document has no jwks_uri")
	}
	return doc.JWKSURI, nil
}
