package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

// UserCreateCommand registers a local user, e.g. the first admin before
// switching AUTH_MODE to local.
type UserCreateCommand struct {
	Username     string
	Email        string
	Password     string
	Role         string
	DatabasePath string
	Auth         config.Auth

	Out io.Writer
}

func NewUserCreateCommand() *UserCreateCommand {
	return &UserCreateCommand{Out: os.Stdout}
}

func (cmd *UserCreateCommand) ParseFlags(args []string) error {
	cfg := config.NewConfig()

	fs := flag.NewFlagSet("user-create", flag.ExitOnError)

	fs.StringVar(&cmd.Username, "username", "", "Login name (required)")
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password (required)")
	fs.StringVar(&cmd.Role, "role", string(entities.UserRoleEditor), "One of admin, editor, viewer")
	fs.StringVar(&cmd.DatabasePath, "db", cfg.Database.Path, "Path to the library database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s user-create -username <name> -email <email> -password <password> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.Auth = cfg.Auth

	if cmd.Username == "" || cmd.Email == "" || cmd.Password == "" {
		return fmt.Errorf("-username, -email and -password are required")
	}
	return nil
}

func (cmd *UserCreateCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	service := auth.NewService(db.DB, cmd.Auth)
	user, err := service.CreateUser(cmd.Username, cmd.Email, cmd.Password, entities.UserRole(cmd.Role))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(cmd.Out, "Created user %s [%d] with role %s\n", user.Username, user.ID, user.Role)
	return nil
}
