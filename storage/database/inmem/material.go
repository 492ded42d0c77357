package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/material"
)

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *DB) material.Repository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(_ context.Context, mat material.Material) (material.Material, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[mat.CourseID]; !ok {
		return material.Material{}, course.ErrNotFound
	}
	repo.db.materials[mat.ID] = mat
	return mat, nil
}

func (repo *materialRepository) GetMaterial(_ context.Context, id string) (material.Material, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if mat, ok := repo.db.materials[id]; ok {
		return mat, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) QueryMaterials(_ context.Context, courseID string) ([]material.Material, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	mats := make([]material.Material, 0)
	for _, mat := range repo.db.materials {
		if mat.CourseID == courseID {
			mats = append(mats, mat)
		}
	}
	sort.SliceStable(mats, func(i, j int) bool {
		if mats[i].Position == mats[j].Position {
			return mats[i].CreatedAt.Before(mats[j].CreatedAt)
		}
		return mats[i].Position < mats[j].Position
	})
	return mats, nil
}

func (repo *materialRepository) UpdateMaterial(_ context.Context, mat material.Material) (material.Material, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.materials[mat.ID]; !ok {
		return material.Material{}, material.ErrNotFound
	}
	repo.db.materials[mat.ID] = mat
	return mat, nil
}

func (repo *materialRepository) DeleteMaterial(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return material.ErrNotFound
	}
	repo.db.deleteMaterialRows(id)
	return nil
}

func (repo *materialRepository) SetPositions(_ context.Context, courseID string, positions map[string]int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id := range positions {
		if mat, ok := repo.db.materials[id]; !ok || mat.CourseID != courseID {
			return material.ErrNotFound
		}
	}
	for id, pos := range positions {
		mat := repo.db.materials[id]
		mat.Position = pos
		repo.db.materials[id] = mat
	}
	return nil
}
