// Package rpctls builds the mTLS transport credentials for the
// shipper<->collector gRPC channel from the named CLI flags. It is a
// thin adapter over
// github.com/docker/go-connections/tlsconfig, the same TLS-options helper
// moby/moby's daemon and CLI use to build their client/server tls.Config.
package rpctls

import (
	"crypto/tls"

	dockertlsconfig "github.com/docker/go-connections/tlsconfig"
	"github.com/pkg/errors"
	"google.golang.org/grpc/credentials"
)

// ClientCredentials builds the shipper-side transport credentials for
// --tls-ca-certificate/--tls-private-key/--tls-certificate, with an
// optional --tls-remote-hostname override of the certificate's expected
// server name.
func ClientCredentials(caFile, certFile, keyFile, remoteHostname string) (credentials.TransportCredentials, error) {
	cfg, err := dockertlsconfig.Client(dockertlsconfig.Options{
		CAFile:             caFile,
		CertFile:           certFile,
		KeyFile:            keyFile,
		ExclusiveRootPools: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build client tls config")
	}
	if remoteHostname != "" {
		cfg.ServerName = remoteHostname
	}
	return credentials.NewTLS(cfg), nil
}

// ServerCredentials builds the collector-side transport credentials,
// requiring and verifying a client certificate signed by caFile (mTLS).
func ServerCredentials(caFile, certFile, keyFile string) (credentials.TransportCredentials, error) {
	cfg, err := dockertlsconfig.Server(dockertlsconfig.Options{
		CAFile:             caFile,
		CertFile:           certFile,
		KeyFile:            keyFile,
		ExclusiveRootPools: true,
		ClientAuth:         tls.RequireAndVerifyClientCert,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build server tls config")
	}
	return credentials.NewTLS(cfg), nil
}
