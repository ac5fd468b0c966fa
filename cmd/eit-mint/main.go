package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/bionicotaku/lingo-utils-eit"
)

type CLI struct {
	UserID    string    `required:"" help:"User id the token vouches for."`
	Nonce     string    `required:"" help:"Nonce returned by the platform authentication challenge."`
	ExpiresAt time.Time `help:"Token expiry (RFC3339). Defaults to 14 days after issue."`

	FirstName   string `help:"Optional first_name claim."`
	LastName    string `help:"Optional last_name claim."`
	DisplayName string `help:"Optional display_name claim."`
	AvatarURL   string `help:"Optional avatar_url claim."`

	KeyID         string `required:"" env:"LAYER_KEY_ID" help:"Signing key id registered with the platform."`
	ProviderID    string `required:"" env:"LAYER_PROVIDER_ID" help:"Provider id used as token issuer."`
	PrivateKey    string `env:"LAYER_PRIVATE_KEY" help:"PEM encoded RSA private key; literal \\n sequences are accepted."`
	SecretVersion string `env:"LAYER_PRIVATE_KEY_SECRET" help:"Secret Manager version holding the private key, e.g. projects/p/secrets/s/versions/latest."`

	// Env is consumed by envFileFromArgs before parsing; the field only
	// registers the flag.
	Env string `placeholder:"PATH" help:"Path to .env file (env EIT_ENV_FILE, default .env)."`
}

func (cli *CLI) Run(ctx context.Context, logger *slog.Logger, out io.Writer) error {
	keys, err := cli.keyProvider()
	if err != nil {
		return err
	}

	builder, err := eit.NewTokenBuilder(eit.BuilderConfig{
		Identity: eit.StaticIdentity{Key: cli.KeyID, Provider: cli.ProviderID},
		Keys:     keys,
	})
	if err != nil {
		return fmt.Errorf("create token builder: %w", err)
	}

	token, err := builder.Build(ctx, eit.IdentityRequest{
		UserID:    cli.UserID,
		Nonce:     cli.Nonce,
		ExpiresAt: cli.ExpiresAt,
		Attributes: eit.ProfileAttributes{
			FirstName:   cli.FirstName,
			LastName:    cli.LastName,
			DisplayName: cli.DisplayName,
			AvatarURL:   cli.AvatarURL,
		},
	})
	if err != nil {
		return fmt.Errorf("issue identity token: %w", err)
	}

	logger.Info("issued identity token", slog.String("user-id", cli.UserID), slog.String("key-id", cli.KeyID))
	_, err = fmt.Fprintln(out, token)
	return err
}

func (cli *CLI) keyProvider() (eit.KeyProvider, error) {
	switch {
	case cli.SecretVersion != "":
		return eit.NewSecretManagerKey(cli.SecretVersion), nil
	case cli.PrivateKey != "":
		return eit.StaticKey(cli.PrivateKey), nil
	}
	return nil, errors.New("private key is required (--private-key, LAYER_PRIVATE_KEY or --secret-version)")
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	return kong.New(cli, append([]kong.Option{
		kong.Name("eit-mint"),
		kong.Description("Issue a Layer identity token for a user."),
	}, options...)...)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// env: tags are resolved during parsing, so the file must be loaded first.
	envPath := envFileFromArgs(os.Args[1:])
	if err := loadEnvFile(envPath); err != nil {
		logger.Warn("failed to load env file", slog.String("path", envPath), slog.Any("error", err))
	}

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		logger.Error("failed to build CLI", slog.Any("error", err))
		os.Exit(1)
	}
	cliCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.BindTo(io.Writer(os.Stdout), (*io.Writer)(nil))
	cliCtx.Bind(logger)

	if err := cliCtx.Run(); err != nil {
		logger.Error("failed to run CLI", slog.Any("error", err))
		os.Exit(1)
	}
}

// envFileFromArgs returns the --env value from args, falling back to
// EIT_ENV_FILE and then ".env".
func envFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if path, ok := strings.CutPrefix(arg, "--env="); ok {
			return path
		}
		if arg == "--env" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if path := os.Getenv("EIT_ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

// loadEnvFile exports the variables in path without overriding ones already
// set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
