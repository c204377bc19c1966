package cmd

import (
	"os"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/auth"
	"github.com/lexicon-labs/lexicon-cli/internal/config"
	"github.com/lexicon-labs/lexicon-cli/internal/secrets"
)

var (
	openSecretsStore = secrets.OpenDefault
	newClientFunc    = func(baseURL, token string, opts ...api.ClientOption) api.LexiconAPI {
		return api.NewClient(baseURL, token, opts...)
	}
	envGet      = os.Getenv
	loadDotEnv  = config.LoadDotEnv
	openBrowser = auth.OpenBrowser
)
