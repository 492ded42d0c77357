package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/bookmark"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/material"
)

type bookmarkRepository struct {
	db *DB
}

var _ bookmark.Repository = (*bookmarkRepository)(nil)

func NewBookmarkRepository(db *DB) bookmark.Repository {
	return &bookmarkRepository{db: db}
}

func sameMaterial(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (repo *bookmarkRepository) CreateBookmark(_ context.Context, bm bookmark.Bookmark) (bookmark.Bookmark, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[bm.CourseID]; !ok {
		return bookmark.Bookmark{}, course.ErrNotFound
	}
	if bm.MaterialID != nil {
		if mat, ok := repo.db.materials[*bm.MaterialID]; !ok || mat.CourseID != bm.CourseID {
			return bookmark.Bookmark{}, material.ErrNotFound
		}
	}
	for _, other := range repo.db.bookmarks {
		if other.UserID == bm.UserID && other.CourseID == bm.CourseID &&
			sameMaterial(other.MaterialID, bm.MaterialID) && other.PositionSeconds == bm.PositionSeconds {
			return bookmark.Bookmark{}, bookmark.ErrExists
		}
	}
	repo.db.bookmarks[bm.ID] = bm
	return bm, nil
}

func (repo *bookmarkRepository) GetBookmark(_ context.Context, id string) (bookmark.Bookmark, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if bm, ok := repo.db.bookmarks[id]; ok {
		return bm, nil
	}
	return bookmark.Bookmark{}, bookmark.ErrNotFound
}

func (repo *bookmarkRepository) QueryBookmarks(_ context.Context, userID, courseID string) ([]bookmark.Bookmark, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bms := make([]bookmark.Bookmark, 0)
	for _, bm := range repo.db.bookmarks {
		if bm.UserID != userID || (courseID != "" && bm.CourseID != courseID) {
			continue
		}
		bms = append(bms, bm)
	}
	sort.SliceStable(bms, func(i, j int) bool { return bms[i].CreatedAt.After(bms[j].CreatedAt) })
	return bms, nil
}

func (repo *bookmarkRepository) DeleteBookmark(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.bookmarks[id]; !ok {
		return bookmark.ErrNotFound
	}
	delete(repo.db.bookmarks, id)
	return nil
}
