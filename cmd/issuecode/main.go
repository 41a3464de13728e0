// Command issuecode writes an authorization code into the configured code
// store and prints it, so a client can be driven against the token endpoint
// without an authorization server in front of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jrsteele09/go-token-exchange/authcode"
	"github.com/jrsteele09/go-token-exchange/clients"
	fakeclientrepo "github.com/jrsteele09/go-token-exchange/clients/fakerepo"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	"github.com/pkg/errors"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	c, err := config.Load()
	if err != nil {
		return err
	}

	store, err := authcode.NewStore(c.GetAuthCodeStoreConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	var registry clients.Repo
	if path := c.GetClientsFile(); path != "" {
		registered, err := clients.LoadFile(path)
		if err != nil {
			return err
		}
		repo := fakeclientrepo.NewFakeClientRepo()
		if err := clients.Seed(repo, registered); err != nil {
			return err
		}
		registry = repo
	}

	return issue(ctx, store, registry, c.GetAuthCodeTimeout(), args, out)
}

// issue parses the flags and writes the code. When registry is set the client
// must be registered there with the given redirect URI.
func issue(ctx context.Context, store authcode.Store, registry clients.Repo, defaultTTL time.Duration, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("issuecode", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		req          authcode.IssueRequest
		responseType string
	)
	fs.StringVar(&req.ClientID, "client-id", "", "client the code is issued to (required)")
	fs.StringVar(&req.RedirectURI, "redirect-uri", "", "redirect URI the client must present")
	fs.StringVar(&responseType, "response-type", string(authcode.Code), `"code" or "code id_token"`)
	fs.StringVar(&req.Subject, "sub", "", "subject (user id) of the tokens")
	fs.StringVar(&req.TenantID, "tenant", "", "tenant id")
	fs.StringVar(&req.Scope, "scope", "", "space separated scopes")
	fs.StringVar(&req.Nonce, "nonce", "", "nonce echoed in the ID token")
	fs.DurationVar(&req.TTL, "ttl", defaultTTL, "code lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if req.ClientID == "" {
		return errors.New("-client-id is required")
	}
	rt, err := authcode.ParseResponseType(responseType)
	if err != nil {
		return err
	}
	req.ResponseType = rt

	if registry != nil {
		if err := checkRegistration(registry, req.ClientID, req.RedirectURI); err != nil {
			return err
		}
	}

	details, err := authcode.Issue(ctx, store, req, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, details.Code)
	return err
}

func checkRegistration(registry clients.Repo, clientID, redirectURI string) error {
	client, err := registry.Get(clientID)
	if errors.Is(err, clients.ErrNotFound) {
		return errors.Errorf("client %q is not registered", clientID)
	}
	if err != nil {
		return errors.Wrap(err, "lookup client")
	}
	if !client.HasRedirectURI(redirectURI) {
		return errors.Errorf("redirect URI %q is not registered for client %q", redirectURI, clientID)
	}
	return nil
}
