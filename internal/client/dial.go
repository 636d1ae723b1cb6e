// Package client is the fin-keeper client side: connection setup, the
// stored session and the Ledger façade used by CLI commands.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// DialOptions selects transport security and identity for Dial.
type DialOptions struct {
	Addr string
	// CACert is a PEM file; empty means system roots.
	CACert string
	// SkipVerify disables certificate verification.
	SkipVerify bool
	// Plaintext disables TLS entirely (local development only).
	Plaintext bool
	// Token is sent as "authorization: Bearer <token>" when set.
	Token string
	// TokenFunc, when set, is consulted on every call instead of Token.
	TokenFunc func() string
}

type bearerCreds struct {
	token  func() string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	t := b.token()
	if t == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + t}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// Dial creates a lazily connecting client connection. Extra options are
// appended, which lets tests inject a bufconn dialer.
func Dial(o DialOptions, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if o.Plaintext {
		creds = insecure.NewCredentials()
	} else {
		c, err := loadTLS(o.CACert, o.SkipVerify)
		if err != nil {
			return nil, err
		}
		creds = c
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	tok := o.TokenFunc
	if tok == nil && o.Token != "" {
		tok = func() string { return o.Token }
	}
	if tok != nil {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: tok, secure: !o.Plaintext}))
	}
	opts = append(opts, extra...)
	return grpc.NewClient(o.Addr, opts...)
}
