// Package googleauth builds client options for Google API services from a
// service-account file or application default credentials.
package googleauth

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Config selects credentials and an optional endpoint override.
type Config struct {
	CredentialsFile string
	Endpoint        string
	Scopes          []string
}

// ClientOptions returns the options to pass to a generated service
// constructor. An endpoint without credentials is treated as an
// unauthenticated emulator.
func ClientOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, cfg.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse google credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	default:
		creds, err := google.FindDefaultCredentials(ctx, cfg.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("find default google credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	}
	return opts, nil
}
