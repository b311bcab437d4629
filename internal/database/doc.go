// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── authors/         # Global author registry (find-or-create by name)
//	├── books/           # Per-owner books keyed by their natural key
//	├── tags/            # Tags and the polymorphic taggings table
//	├── checkouts/       # Loans of books to users
//	├── audit/           # Audit trail
//	└── users/           # User management
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type bound to a *gorm.DB. Because
// the handle is passed in, the same repository works against a transaction:
//
//	db, err := database.NewDatabase("./librarian.db")
//
//	err = db.DB.Transaction(func(tx *gorm.DB) error {
//		author, err := authors.NewRepository(tx).FindOrCreateAuthor("Ursula K. Le Guin")
//		if err != nil {
//			return err
//		}
//		_, _, err = books.NewRepository(tx).FindOrCreateBook(books.Key{...})
//		return err
//	})
//
// # Uniqueness
//
// Find-or-create operations rely on unique indexes (authors.name, tags.name,
// the books natural key, the taggings triple) and INSERT ... ON CONFLICT DO
// NOTHING, so two writers racing on the same name converge on one row.
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Register the entity in Migrate
//  5. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
package database
