package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/logging"
	"github.com/mrlokans/librarian/internal/services"
	"github.com/mrlokans/librarian/internal/utils"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	createdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// ErrImportCancelled is returned when the operator declines the prompt.
var ErrImportCancelled = errors.New("import cancelled")

// ImportBooksCommand imports a CSV file from the imports folder for a user.
type ImportBooksCommand struct {
	Filename     string
	UserRef      string
	ImportsDir   string
	DatabasePath string
	AuditDir     string
	Yes          bool
	Delimiter    rune
	ImportLog    config.ImportLog

	// Confirm asks the operator before importing. Defaults to a huh prompt.
	Confirm func(question string) (bool, error)
	Out     io.Writer
}

func NewImportBooksCommand() *ImportBooksCommand {
	return &ImportBooksCommand{
		Confirm: confirmPrompt,
		Out:     os.Stdout,
	}
}

func (cmd *ImportBooksCommand) ParseFlags(args []string) error {
	cfg := config.NewConfig()

	fs := flag.NewFlagSet("import-books", flag.ExitOnError)

	fs.StringVar(&cmd.Filename, "file", "", "Name of the CSV file inside the imports directory (required)")
	fs.StringVar(&cmd.UserRef, "user", "", "ID or username of the user who will own the books (required)")
	fs.StringVar(&cmd.ImportsDir, "dir", cfg.Imports.Dir, "Directory the file name is resolved against")
	fs.StringVar(&cmd.DatabasePath, "db", cfg.Database.Path, "Path to the library database")
	fs.StringVar(&cmd.AuditDir, "audit-dir", cfg.Audit.Dir, "Where runs with rejected rows are archived")
	fs.BoolVar(&cmd.Yes, "yes", false, "Import without asking for confirmation")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import-books -file <name> -user <id|username> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import books from a CSV file with the columns\n")
		fmt.Fprintf(os.Stderr, "  title,author,isbn13,page_count[,book_tags,author_tags]\n\n")
		fmt.Fprintf(os.Stderr, "Books already in the library for that user are skipped.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import-books -file books.csv -user 1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import-books -file books.csv -user alice -yes\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.ImportLog = cfg.ImportLog
	if cfg.Imports.Delimiter != "" {
		cmd.Delimiter = []rune(cfg.Imports.Delimiter)[0]
	}

	if cmd.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	if cmd.UserRef == "" {
		return fmt.Errorf("user ID is required")
	}
	return nil
}

func (cmd *ImportBooksCommand) Run() error {
	return cmd.RunContext(context.Background())
}

func (cmd *ImportBooksCommand) RunContext(ctx context.Context) error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	owner, err := users.NewRepository(db.DB).ResolveUser(cmd.UserRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("user not found: %s", cmd.UserRef)
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	path, err := utils.JoinInDir(cmd.ImportsDir, cmd.Filename)
	if err != nil {
		return fmt.Errorf("invalid file name %q: %w", cmd.Filename, err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}

	fmt.Fprintf(cmd.Out, "Importing books from %s for %s [%d]\n", path, owner.Username, owner.ID)

	if !cmd.Yes {
		ok, err := cmd.Confirm("Do you wish to continue?")
		if err != nil && !errors.Is(err, huh.ErrUserAborted) {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.Out, skippedStyle.Render("Import cancelled."))
			return ErrImportCancelled
		}
	}

	channel, err := logging.NewBookImportsChannel(cmd.ImportLog)
	if err != nil {
		return fmt.Errorf("failed to open import log: %w", err)
	}
	defer channel.Close()

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Flush()

	importer := services.NewBookImportService(
		services.NewGormImportStore(db.DB),
		services.WithImportLogger(channel.Logger),
		services.WithImportAuditor(auditService),
		services.WithResultArchiver(audit.NewAuditor(cmd.AuditDir)),
		services.WithCSVDelimiter(cmd.Delimiter),
	)

	result, err := importer.ImportFromCSV(ctx, path, owner)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.Out, renderSummary(result))
	return nil
}

func renderSummary(result *services.ImportResult) string {
	summary := fmt.Sprintf("%s\n%s  %s  %s",
		titleStyle.Render(fmt.Sprintf("Import completed: %d rows", result.Total)),
		createdStyle.Render(fmt.Sprintf("%d created", result.Created)),
		skippedStyle.Render(fmt.Sprintf("%d skipped", result.Skipped)),
		failedStyle.Render(fmt.Sprintf("%d failed", result.Failed)),
	)

	for _, rowErr := range result.Errors {
		summary += "\n" + failedStyle.Render(fmt.Sprintf("  %q by %q: %s",
			rowErr.Data["title"], rowErr.Data["author"], rowErr.Error))
	}

	return boxStyle.Render(summary)
}

func confirmPrompt(question string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}
