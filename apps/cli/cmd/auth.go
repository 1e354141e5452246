package cmd

import (
	"context"
	"strings"

	"github.com/perchrh/ackhttp/packages/auth/oauth2"
	"github.com/perchrh/ackhttp/packages/core/config"
	"github.com/perchrh/ackhttp/packages/http"
)

// authorize adds a bearer token from the configured OAuth2 provider. An
// Authorization header given on the command line wins.
func authorize(ctx context.Context, cfg *config.Config, client *http.Client, opts *http.RequestOptions) error {
	oc := cfg.OAuth2Config()
	if oc == nil || hasHeader(opts.Headers, "Authorization") {
		return nil
	}

	token, err := oauth2.NewProvider(oc, client, nil).GetToken(ctx)
	if err != nil {
		if http.KindOf(err) == http.KindTransport {
			return withExitCode(ExitNetworkError, err)
		}
		return withExitCode(ExitConfigError, err)
	}

	if opts.Headers == nil {
		opts.Headers = make(map[string]string)
	}
	opts.Headers["Authorization"] = token.AuthorizationHeader()
	return nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
