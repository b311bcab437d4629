// Command generate_demo creates a demo library database: a few users, a
// catalogue of public domain books imported through the CSV importer, and
// some loans, one of them overdue.
// Usage: go run ./cmd/generate_demo [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/services"
)

const defaultDemoDatabasePath = "./demo/demo.db"

const publicDomainBooks = `title,author,isbn13,page_count,book_tags,author_tags
Pride and Prejudice,Jane Austen,9780141439518,480,classic;romance,british;19th-century
Emma,Jane Austen,9780141439587,474,classic;romance,british;19th-century
Moby-Dick,Herman Melville,9780142437247,720,classic;adventure,american;19th-century
Frankenstein,Mary Shelley,9780141439471,280,classic;gothic;sci-fi,british;19th-century
Dracula,Bram Stoker,9780141439846,488,classic;gothic;horror,irish;19th-century
The Time Machine,H. G. Wells,9780141439976,128,sci-fi,british
The War of the Worlds,H. G. Wells,9780141441030,240,sci-fi,british
Meditations,Marcus Aurelius,9780140449334,304,philosophy,roman;stoic
The Art of War,Sun Tzu,9781590302255,273,philosophy;strategy,chinese
Walden,Henry David Thoreau,9780691096124,352,essays;nature,american;19th-century
`

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	userRepo := users.NewRepository(db.DB)
	owner, err := userRepo.EnsureUser("librarian")
	if err != nil {
		log.Fatalf("Failed to create owner: %v", err)
	}
	readers := make([]*entities.User, 0, 2)
	for _, name := range []string{"alice", "bob"} {
		u, err := userRepo.CreateUser(name, name+"@example.com")
		if err != nil {
			log.Fatalf("Failed to create user %s: %v", name, err)
		}
		readers = append(readers, u)
	}

	ctx := context.Background()
	importer := services.NewBookImportService(services.NewGormImportStore(db.DB))
	result, err := importer.ImportFromReader(ctx, "demo-books.csv", strings.NewReader(publicDomainBooks), owner)
	if err != nil {
		log.Fatalf("Failed to import demo books: %v", err)
	}
	log.Printf("Imported %d books (%d failed)", result.Created, result.Failed)

	createLoans(ctx, db, readers)

	log.Printf("Demo database generated at %s", *dbPath)
}

// createLoans lends the first books to the readers. The first loan started a
// month ago so it shows up as overdue.
func createLoans(ctx context.Context, db *database.Database, readers []*entities.User) {
	var catalogue []entities.Book
	if err := db.DB.Order("id ASC").Limit(len(readers) + 1).Find(&catalogue).Error; err != nil {
		log.Fatalf("Failed to load books: %v", err)
	}

	past := time.Now().AddDate(0, -1, 0)
	for i, reader := range readers {
		if i >= len(catalogue) {
			break
		}
		opts := []services.CheckoutOption{}
		if i == 0 {
			opts = append(opts, services.WithClock(func() time.Time { return past }))
		}
		checkout, err := services.NewCheckoutService(db.DB, opts...).Checkout(ctx, reader.ID, catalogue[i].ID)
		if err != nil {
			log.Printf("Failed to lend %s to %s: %v", catalogue[i].Title, reader.Username, err)
			continue
		}
		log.Printf("Lent %s to %s, due %s", catalogue[i].Title, reader.Username, checkout.DueAt.Format("2006-01-02"))
	}
}
