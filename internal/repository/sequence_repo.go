package repository

import (
	"context"
	"errors"

	"bizledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository hands out document numbers. Values are monotonic per
// (doc type, year) and never reused; deleting a document does not free its
// number.
type SequenceRepository interface {
	// Next increments and returns the sequence value. Must run inside a
	// transaction so the allocation commits or rolls back with the document
	// that consumed it.
	Next(ctx context.Context, docType string, year int) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, docType string, year int) (int64, error) {
	db := GetDB(ctx, r.db)

	var seq model.DocumentSequence
	err := db.Clauses(forUpdate()).
		Where("doc_type = ? AND year = ?", docType, year).
		First(&seq).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		// First document of the year. ON CONFLICT DO NOTHING covers the race
		// where two transactions both miss the row; the loser re-reads under
		// the lock.
		seq = model.DocumentSequence{DocType: docType, Year: year, LastValue: 0}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
			return 0, err
		}
		if err := db.Clauses(forUpdate()).
			Where("doc_type = ? AND year = ?", docType, year).
			First(&seq).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	seq.LastValue++
	if err := db.Save(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}
