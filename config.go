/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/triviaboard/jservice"
	"github.com/Seednode/triviaboard/trivia"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	apiURL           string
	bind             string
	categories       int
	categoryPool     int
	clues            int
	fetchConcurrency int
	fetchRetries     uint
	fetchTimeout     time.Duration
	port             int
	prefix           string
	profile          bool
	sessionTimeout   time.Duration
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.categories < 1 {
		return fmt.Errorf("invalid category count (must be at least 1): %d", c.categories)
	}
	if c.clues < 1 {
		return fmt.Errorf("invalid clue count (must be at least 1): %d", c.clues)
	}
	if c.categoryPool < c.categories {
		return fmt.Errorf("category pool (%d) must be at least as large as the category count (%d)", c.categoryPool, c.categories)
	}
	if c.fetchRetries < 1 {
		return errors.New("--fetch-retries must be at least 1")
	}
	u, err := url.Parse(c.apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url: %q", c.apiURL)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// newBuilder wires the quiz API client into a board builder.
func (c *Config) newBuilder() (*trivia.Builder, error) {
	client, err := jservice.New(c.apiURL,
		jservice.WithTimeout(c.fetchTimeout),
		jservice.WithAttempts(c.fetchRetries),
		jservice.WithUserAgent("triviaboard/"+releaseVersion),
	)
	if err != nil {
		return nil, err
	}

	return trivia.NewBuilder(client,
		trivia.WithPoolSize(c.categoryPool),
		trivia.WithConcurrency(c.fetchConcurrency),
	), nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIABOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "triviaboard",
		Short:         "A browser-based trivia board, filled from a public quiz API.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			if cfg.verbose {
				log.Logger = log.Logger.Level(zerolog.DebugLevel)
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.apiURL, "api-url", jservice.DefaultBaseURL, "base url of the jService-compatible quiz api (env: TRIVIABOARD_API_URL)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIABOARD_BIND)")
	fs.IntVar(&cfg.categories, "categories", trivia.DefaultCategories, "categories per board (env: TRIVIABOARD_CATEGORIES)")
	fs.IntVar(&cfg.categoryPool, "category-pool", trivia.DefaultPoolSize, "categories to list before picking at random (env: TRIVIABOARD_CATEGORY_POOL)")
	fs.IntVar(&cfg.clues, "clues", trivia.DefaultClues, "clues per category (env: TRIVIABOARD_CLUES)")
	fs.IntVar(&cfg.fetchConcurrency, "fetch-concurrency", 1, "categories to fetch in parallel while building a board (env: TRIVIABOARD_FETCH_CONCURRENCY)")
	fs.UintVar(&cfg.fetchRetries, "fetch-retries", 3, "attempts per quiz api request (env: TRIVIABOARD_FETCH_RETRIES)")
	fs.DurationVar(&cfg.fetchTimeout, "fetch-timeout", 10*time.Second, "timeout for each quiz api request (env: TRIVIABOARD_FETCH_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRIVIABOARD_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRIVIABOARD_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRIVIABOARD_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: TRIVIABOARD_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRIVIABOARD_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRIVIABOARD_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRIVIABOARD_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRIVIABOARD_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("triviaboard v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
