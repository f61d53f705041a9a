// Command goSsfReceiver is a local stand-in for an Okta SSF receiver. It validates pushed SETs the way the org would
// and serves the transmitter's public JWKS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/MicahParks/keyfunc"
	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/i2-open/goSsfTransmitter/config"
	"github.com/i2-open/goSsfTransmitter/internal/receiver"
	"github.com/i2-open/goSsfTransmitter/internal/transmitter"
	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type CLI struct {
	Key       string `type:"existingfile" help:"PKCS8 private key PEM of the transmitter; its public JWKS is trusted and served"`
	Kid       string `env:"SSF_KEY_ID" help:"Key id published for --key (defaults to a generated id)"`
	JwksUrl   string `name:"jwks-url" help:"Trust a remote JWKS instead of --key"`
	Issuer    string `help:"Expected iss; empty accepts any issuer"`
	Audience  string `help:"Expected aud (defaults to https://<host>:<port of addr>)"`
	Host      string `help:"Host name transmitters use as the Okta domain (defaults to SSF_RECEIVER_HOST)"`
	Addr      string `help:"Listen address (defaults to SSF_RECEIVER_ADDR)"`
	Rate      int    `help:"Accepted events per minute, negative disables (defaults to SSF_RECEIVER_RATE)"`
	Cert      string `type:"existingfile" help:"TLS certificate file (defaults to a generated self signed certificate)"`
	TlsKey    string `name:"tls-key" type:"existingfile" help:"TLS private key file"`
	CertDir   string `name:"cert-dir" help:"Directory for the generated certificate (defaults to SSF_HOME)"`
	PlainHttp bool   `name:"plain-http" help:"Serve plain HTTP instead of TLS"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("goSsfReceiver"),
		kong.Description("Mock Shared Signals Framework receiver"),
		kong.UsageOnError(),
	)

	env, err := config.GetEnvConfig()
	if err != nil {
		fmt.Println("Environment configuration error: " + err.Error())
	}
	logger, err := env.NewLogger()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	if err = cli.applyDefaults(env); err != nil {
		logger.Fatal("invalid receiver address", zap.Error(err))
	}
	if err = cli.prepareTLS(logger); err != nil {
		logger.Fatal("TLS certificate could not be created", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jwks, jwksJSON, err := loadKeys(ctx, cli, logger)
	if err != nil {
		logger.Fatal("no usable issuer key", zap.Error(err))
	}

	app := cli.newApplication(jwks, jwksJSON, logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return app.Serve(groupCtx, cli.Addr, cli.Cert, cli.TlsKey)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		jwks.EndBackground()
		logger.Info("receiver stopped", zap.Int("events", len(app.Received())))
		return nil
	})
	if err = group.Wait(); err != nil {
		logger.Error("receiver failed", zap.Error(err))
		os.Exit(1)
	}
}

// applyDefaults fills unset options from env and derives the expected audience from the host and listen port.
func (cli *CLI) applyDefaults(env config.Config) error {
	if cli.Addr == "" {
		cli.Addr = env.ReceiverAddr
	}
	if cli.Host == "" {
		cli.Host = env.ReceiverHost
	}
	if cli.Rate == 0 {
		cli.Rate = env.ReceiverRate
	}
	if cli.CertDir == "" {
		cli.CertDir = env.Home
	}
	if cli.Audience != "" {
		return nil
	}
	_, port, err := net.SplitHostPort(cli.Addr)
	if err != nil {
		return err
	}
	domain, err := transmitter.SanitizeHost(net.JoinHostPort(cli.Host, port))
	if err != nil {
		return err
	}
	cli.Audience = transmitter.Audience(domain)
	return nil
}

// prepareTLS writes a self signed certificate for --host unless a pair was supplied or TLS is off.
func (cli *CLI) prepareTLS(logger *zap.Logger) error {
	if cli.PlainHttp {
		cli.Cert, cli.TlsKey = "", ""
		return nil
	}
	if cli.Cert != "" || cli.TlsKey != "" {
		if cli.Cert == "" || cli.TlsKey == "" {
			return errors.New("--cert and --tls-key must be given together")
		}
		return nil
	}
	certFile, keyFile, err := receiver.WriteSelfSignedCert(cli.CertDir, cli.Host)
	if err != nil {
		return err
	}
	cli.Cert, cli.TlsKey = certFile, keyFile
	logger.Info("generated self signed certificate; trust it in the transmitter with SSF_CA_FILE",
		zap.String("cert", certFile))
	return nil
}

func (cli *CLI) newApplication(jwks *keyfunc.JWKS, jwksJSON json.RawMessage, logger *zap.Logger) *receiver.Application {
	return receiver.NewApplication(receiver.Config{
		Issuer:        cli.Issuer,
		Audience:      cli.Audience,
		Jwks:          jwks,
		JwksJSON:      jwksJSON,
		RatePerMinute: cli.Rate,
		Logger:        logger,
	})
}

// loadKeys returns the key set used to verify SETs and, for --key, the JWKS document to publish.
func loadKeys(ctx context.Context, cli CLI, logger *zap.Logger) (*keyfunc.JWKS, json.RawMessage, error) {
	if cli.JwksUrl != "" {
		jwks, err := goSet.GetJwks(ctx, cli.JwksUrl, logger)
		return jwks, nil, err
	}
	if cli.Key == "" {
		return nil, nil, errors.New("one of --key or --jwks-url is required")
	}
	pemBytes, err := os.ReadFile(cli.Key)
	if err != nil {
		return nil, nil, err
	}
	key, err := goSet.ParsePrivateKeyPem(pemBytes)
	if err != nil {
		return nil, nil, err
	}
	kid := cli.Kid
	if kid == "" {
		kid = uuid.NewString()
		logger.Info("generated kid for --key", zap.String("kid", kid))
	}
	jwksJSON, err := goSet.PublicJwks(ctx, key, kid)
	if err != nil {
		return nil, nil, err
	}
	jwks, err := goSet.NewJwksFromJSON(jwksJSON)
	return jwks, jwksJSON, err
}
