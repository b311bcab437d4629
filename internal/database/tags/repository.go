// Package tags provides database operations for tags and their polymorphic
// associations.
//
// Tags are global and deduplicated by exact name. Any entities.Taggable
// (books and authors) is linked to tags through the single taggings table,
// keyed by (taggable_type, taggable_id, tag_id).
//
// # Usage
//
//	repo := tags.NewRepository(db)
//	err := repo.SyncTags(book, "fiction; drama")
package tags

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

// ListSeparator separates tag names inside an import field.
const ListSeparator = ";"

// Repository handles all tag database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new tags repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SplitTagList splits a ";"-separated list into trimmed, unique, non-empty
// names, keeping first-seen order.
func SplitTagList(list string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, token := range strings.Split(list, ListSeparator) {
		name := strings.TrimSpace(token)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// GetOrCreateTag retrieves or creates a tag by exact name.
func (r *Repository) GetOrCreateTag(name string) (*entities.Tag, error) {
	tag, err := r.GetTagByName(name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &entities.Tag{Name: name}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(created)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 {
		return created, nil
	}

	var existing entities.Tag
	if err := r.db.Unscoped().Where("name = ?", name).First(&existing).Error; err != nil {
		return nil, err
	}
	if existing.DeletedAt.Valid {
		if err := r.db.Unscoped().Model(&existing).Update("deleted_at", nil).Error; err != nil {
			return nil, err
		}
		existing.DeletedAt = gorm.DeletedAt{}
	}
	return &existing, nil
}

// GetTagByName retrieves a tag by exact name.
func (r *Repository) GetTagByName(name string) (*entities.Tag, error) {
	var tag entities.Tag
	if err := r.db.Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetTagByID retrieves a tag by ID.
func (r *Repository) GetTagByID(id uint) (*entities.Tag, error) {
	var tag entities.Tag
	err := r.db.First(&tag, id).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetAllTags lists every tag alphabetically.
func (r *Repository) GetAllTags() ([]entities.Tag, error) {
	var tags []entities.Tag
	err := r.db.Order("name ASC").Find(&tags).Error
	return tags, err
}

// SearchTags searches tags by name (case-insensitive partial match).
func (r *Repository) SearchTags(query string) ([]entities.Tag, error) {
	var tags []entities.Tag
	searchPattern := "%" + query + "%"
	err := r.db.Where("LOWER(name) LIKE LOWER(?)", searchPattern).Order("name ASC").Find(&tags).Error
	return tags, err
}

// DeleteTag deletes a tag and all of its associations.
func (r *Repository) DeleteTag(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&entities.Tagging{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Tag{}, id).Error
	})
}

// DeleteOrphanTags removes all tags that no book or author uses.
func (r *Repository) DeleteOrphanTags() (int64, error) {
	result := r.db.Exec(`
		DELETE FROM tags
		WHERE id NOT IN (SELECT tag_id FROM taggings)
	`)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// TagsFor returns the tags attached to an entity, ordered by name.
func (r *Repository) TagsFor(entity entities.Taggable) ([]entities.Tag, error) {
	var tags []entities.Tag
	err := r.db.
		Joins("JOIN taggings ON taggings.tag_id = tags.id").
		Where("taggings.taggable_type = ? AND taggings.taggable_id = ?", entity.TaggableType(), entity.TaggableID()).
		Order("tags.name ASC").
		Find(&tags).Error
	return tags, err
}

// HasTag reports whether the entity carries a tag with exactly this name.
func (r *Repository) HasTag(entity entities.Taggable, name string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.Tagging{}).
		Joins("JOIN tags ON tags.id = taggings.tag_id").
		Where("taggings.taggable_type = ? AND taggings.taggable_id = ? AND tags.name = ?",
			entity.TaggableType(), entity.TaggableID(), name).
		Count(&count).Error
	return count > 0, err
}

// AddTag attaches a tag, creating it when needed. Adding a tag the entity
// already has is a no-op.
func (r *Repository) AddTag(entity entities.Taggable, name string) error {
	if err := checkPersisted(entity); err != nil {
		return err
	}
	tag, err := r.GetOrCreateTag(name)
	if err != nil {
		return err
	}
	return r.attach(entity, []uint{tag.ID})
}

// RemoveTag detaches a tag by name. Unknown tags are ignored.
func (r *Repository) RemoveTag(entity entities.Taggable, name string) error {
	tag, err := r.GetTagByName(name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.detach(entity, []uint{tag.ID})
}

// ClearTags detaches every tag from the entity.
func (r *Repository) ClearTags(entity entities.Taggable) error {
	return r.db.
		Where("taggable_type = ? AND taggable_id = ?", entity.TaggableType(), entity.TaggableID()).
		Delete(&entities.Tagging{}).Error
}

// SyncTags replaces the entity's tag set with the tags named in list. An
// empty list leaves existing tags alone.
func (r *Repository) SyncTags(entity entities.Taggable, list string) error {
	names := SplitTagList(list)
	if len(names) == 0 {
		return nil
	}
	return r.SyncTagNames(entity, names)
}

// SyncTagNames is SyncTags for an already split list.
func (r *Repository) SyncTagNames(entity entities.Taggable, names []string) error {
	if err := checkPersisted(entity); err != nil {
		return err
	}

	wanted := make([]uint, 0, len(names))
	for _, name := range names {
		tag, err := r.GetOrCreateTag(name)
		if err != nil {
			return fmt.Errorf("resolve tag %q: %w", name, err)
		}
		wanted = append(wanted, tag.ID)
	}

	var current []uint
	err := r.db.Model(&entities.Tagging{}).
		Where("taggable_type = ? AND taggable_id = ?", entity.TaggableType(), entity.TaggableID()).
		Pluck("tag_id", &current).Error
	if err != nil {
		return err
	}

	keep := make(map[uint]bool, len(wanted))
	for _, id := range wanted {
		keep[id] = true
	}
	var stale []uint
	for _, id := range current {
		if !keep[id] {
			stale = append(stale, id)
		}
	}

	if err := r.detach(entity, stale); err != nil {
		return err
	}
	return r.attach(entity, wanted)
}

func (r *Repository) attach(entity entities.Taggable, tagIDs []uint) error {
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]entities.Tagging, 0, len(tagIDs))
	for _, id := range tagIDs {
		rows = append(rows, entities.Tagging{
			TagID:        id,
			TaggableType: entity.TaggableType(),
			TaggableID:   entity.TaggableID(),
		})
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *Repository) detach(entity entities.Taggable, tagIDs []uint) error {
	if len(tagIDs) == 0 {
		return nil
	}
	return r.db.
		Where("taggable_type = ? AND taggable_id = ? AND tag_id IN ?", entity.TaggableType(), entity.TaggableID(), tagIDs).
		Delete(&entities.Tagging{}).Error
}

func checkPersisted(entity entities.Taggable) error {
	if entity.TaggableID() == 0 {
		return fmt.Errorf("cannot tag unsaved %s", entity.TaggableType())
	}
	return nil
}

// LoadBookTags fills Tags on each book with one query.
func (r *Repository) LoadBookTags(books []entities.Book) error {
	if len(books) == 0 {
		return nil
	}
	ids := make([]uint, len(books))
	for i := range books {
		ids[i] = books[i].ID
	}
	byID, err := r.tagsByTaggable(entities.TaggableTypeBook, ids)
	if err != nil {
		return err
	}
	for i := range books {
		books[i].Tags = byID[books[i].ID]
	}
	return nil
}

// LoadAuthorTags fills Tags on each author with one query.
func (r *Repository) LoadAuthorTags(authors []entities.Author) error {
	if len(authors) == 0 {
		return nil
	}
	ids := make([]uint, len(authors))
	for i := range authors {
		ids[i] = authors[i].ID
	}
	byID, err := r.tagsByTaggable(entities.TaggableTypeAuthor, ids)
	if err != nil {
		return err
	}
	for i := range authors {
		authors[i].Tags = byID[authors[i].ID]
	}
	return nil
}

func (r *Repository) tagsByTaggable(taggableType string, ids []uint) (map[uint][]entities.Tag, error) {
	var taggings []entities.Tagging
	err := r.db.Preload("Tag").
		Joins("JOIN tags ON tags.id = taggings.tag_id AND tags.deleted_at IS NULL").
		Where("taggings.taggable_type = ? AND taggings.taggable_id IN ?", taggableType, ids).
		Order("tags.name ASC").
		Find(&taggings).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint][]entities.Tag, len(ids))
	for _, t := range taggings {
		out[t.TaggableID] = append(out[t.TaggableID], t.Tag)
	}
	return out, nil
}

// GetBookIDsByTag returns the ids of books carrying the named tag.
func (r *Repository) GetBookIDsByTag(name string) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&entities.Tagging{}).
		Joins("JOIN tags ON tags.id = taggings.tag_id").
		Where("tags.name = ? AND taggings.taggable_type = ?", name, entities.TaggableTypeBook).
		Pluck("taggings.taggable_id", &ids).Error
	return ids, err
}
