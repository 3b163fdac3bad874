package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/KOMKZ/go-yogan-tokenauth/auth"
	"github.com/KOMKZ/go-yogan-tokenauth/config"
	"github.com/KOMKZ/go-yogan-tokenauth/flagx"
	"github.com/KOMKZ/go-yogan-tokenauth/server"
	"github.com/KOMKZ/go-yogan-tokenauth/user"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	ConfigDir string `flag:"config,c" usage:"directory holding config.yaml and <APP_ENV>.yaml"`
}

// serveFlags double as a config source through their config tags
type serveFlags struct {
	Host string `flag:"host" usage:"listen host" config:"api_server.host"`
	Port int    `flag:"port,p" usage:"listen port" config:"api_server.port"`
	Mode string `flag:"mode" usage:"gin mode: debug, release or test" config:"api_server.mode"`
}

type hashFlags struct {
	Password string `flag:"password" usage:"password to hash, - reads one line from stdin" default:"-"`
	Cost     int    `flag:"cost" usage:"bcrypt cost" default:"12"`
}

type createUserFlags struct {
	Email    string   `flag:"email,e" usage:"login email" required:"true"`
	Nickname string   `flag:"nickname,n" usage:"display name"`
	Password string   `flag:"password" usage:"initial password, - reads one line from stdin" default:"-"`
	Image    string   `flag:"profile-image-url" usage:"profile image url"`
	Roles    []string `flag:"role" usage:"granted roles" default:"ROLE_USER"`
}

func newRootCmd() *cobra.Command {
	var root rootFlags
	cmd := &cobra.Command{
		Use:           "authd",
		Short:         "Token authentication service",
		SilenceUsage:  true,
	}
	mustBind(cmd, &root, true)

	cmd.AddCommand(
		newServeCmd(&root),
		newHashPasswordCmd(),
		newCreateUserCmd(&root),
	)
	return cmd
}

func mustBind(cmd *cobra.Command, target interface{}, persistent bool) {
	if persistent {
		// persistent flags are registered on a scratch command and moved over
		scratch := &cobra.Command{}
		if err := flagx.Bind(scratch, target); err != nil {
			panic(err)
		}
		cmd.PersistentFlags().AddFlagSet(scratch.Flags())
		return
	}
	if err := flagx.Bind(cmd, target); err != nil {
		panic(err)
	}
}

func newServeCmd(root *rootFlags) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := parseAll(cmd, root, &flags); err != nil {
				return err
			}
			cfg, err := loadConfig(root.ConfigDir, &flags)
			if err != nil {
				return err
			}
			return server.New(cfg).Run(cmd.Context())
		},
	}
	mustBind(cmd, &flags, false)
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	var flags hashFlags
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash of a password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flagx.Parse(cmd, &flags); err != nil {
				return err
			}
			password, err := readPassword(flags.Password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.NewPasswordService(auth.PasswordConfig{BcryptCost: flags.Cost}).HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	mustBind(cmd, &flags, false)
	return cmd
}

func newCreateUserCmd(root *rootFlags) *cobra.Command {
	var flags createUserFlags
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Insert a user into the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := parseAll(cmd, root, &flags); err != nil {
				return err
			}
			password, err := readPassword(flags.Password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, err := loadConfig(root.ConfigDir, nil)
			if err != nil {
				return err
			}

			app := server.New(cfg)
			defer func() { _ = app.Shutdown(context.Background()) }()

			created, err := createUser(cmd.Context(), app.Injector(), flags, password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s>\n", created.ID, created.Email)
			return err
		},
	}
	mustBind(cmd, &flags, false)
	return cmd
}

func createUser(ctx context.Context, i do.Injector, flags createUserFlags, password string) (*auth.User, error) {
	passwords, err := do.Invoke[*auth.PasswordService](i)
	if err != nil {
		return nil, err
	}
	if err := passwords.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := passwords.HashPassword(password)
	if err != nil {
		return nil, err
	}

	repo, err := do.Invoke[*user.Repository](i)
	if err != nil {
		return nil, err
	}
	return repo.Create(ctx, user.NewUser{
		Email:           flags.Email,
		Nickname:        flags.Nickname,
		PasswordHash:    hash,
		ProfileImageURL: flags.Image,
		Roles:           flags.Roles,
	})
}

func parseAll(cmd *cobra.Command, root *rootFlags, local interface{}) error {
	if err := flagx.Parse(cmd, root); err != nil {
		return err
	}
	return flagx.Parse(cmd, local)
}

func loadConfig(dir string, flags interface{}) (*server.Config, error) {
	b := config.NewLoaderBuilder().WithEnvPrefix(server.EnvPrefix)
	if dir != "" {
		b.WithConfigPath(dir)
	}
	for key, env := range server.EnvBindings {
		b.WithBinding(key, env)
	}
	if flags != nil {
		b.WithFlags(flags)
	}

	loader, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return server.LoadConfig(loader)
}

func readPassword(value string, in io.Reader) (string, error) {
	if value != "-" {
		return value, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("read password: empty input")
	}
	return line, nil
}
