package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-book-tutor/internal/core/assembler"
	"ai-book-tutor/internal/core/student"
	"ai-book-tutor/internal/core/teaching"
	"ai-book-tutor/internal/database"
	"ai-book-tutor/internal/database/model"

	"gorm.io/gorm"
)

// GormStore persists student state and conversation turns in MySQL.
type GormStore struct{}

// NewGormStore returns the MySQL-backed store.
func NewGormStore() *GormStore { return &GormStore{} }

func (s *GormStore) Load(ctx context.Context, studentID string) (*student.State, error) {
	db, err := database.GetDB()
	if err != nil {
		return nil, err
	}
	var profile model.StudentProfile
	if err := db.WithContext(ctx).First(&profile, "student_id = ?", studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var st student.State
	if err := json.Unmarshal(profile.State, &st); err != nil {
		return nil, err
	}
	if st.Topics == nil {
		st.Topics = map[string]student.TopicRecord{}
	}
	return &st, nil
}

func (s *GormStore) Save(ctx context.Context, studentID string, st *student.State) error {
	db, err := database.GetDB()
	if err != nil {
		return err
	}
	blob, err := json.Marshal(st)
	if err != nil {
		return err
	}
	profile := model.StudentProfile{
		StudentID: studentID,
		State:     blob,
		UpdatedAt: time.Now(),
	}
	// Save upserts on the primary key, replacing the whole blob in one write.
	return db.WithContext(ctx).Save(&profile).Error
}

func (s *GormStore) AppendTurns(ctx context.Context, studentID string, turns []assembler.Turn, phase teaching.Phase) error {
	db, err := database.GetDB()
	if err != nil {
		return err
	}
	rows := make([]model.Message, 0, len(turns))
	for _, t := range turns {
		rows = append(rows, model.Message{
			StudentID: studentID,
			Role:      t.Role,
			Content:   t.Content,
			Phase:     string(phase),
		})
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (s *GormStore) Window(ctx context.Context, studentID string, n int) ([]assembler.Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	db, err := database.GetDB()
	if err != nil {
		return nil, err
	}
	var rows []model.Message
	if err := db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("id desc").
		Limit(n).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	turns := make([]assembler.Turn, len(rows))
	for i, row := range rows {
		turns[len(rows)-1-i] = assembler.Turn{Role: row.Role, Content: row.Content}
	}
	return turns, nil
}
