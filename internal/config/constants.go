package config

// Default filesystem locations
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./librarian.db"

	// DefaultImportsDir is where the import-books command looks for CSV files
	DefaultImportsDir = "./imports"

	// DefaultImportLogPath is the rotating log file of the book_imports channel
	DefaultImportLogPath = "./logs/book_imports.log"
)
