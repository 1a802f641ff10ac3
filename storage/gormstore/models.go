package gormstore

import (
	"time"

	"github.com/MrEthical07/saraAuth"
)

type subjectRow struct {
	ID        string                       `gorm:"primaryKey;size:64"`
	Email     string                       `gorm:"size:320;uniqueIndex;not null"`
	Nickname  string                       `gorm:"size:64"`
	Roles     []string                     `gorm:"serializer:json"`
	Passkeys  []saraAuth.PasskeyCredential `gorm:"serializer:json"`
	Revision  uint64                       `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (subjectRow) TableName() string { return "sara_subjects" }

type tokenRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	SubjectID string    `gorm:"size:64;index;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (tokenRow) TableName() string { return "sara_tokens" }

func (r subjectRow) subject() saraAuth.Subject {
	return saraAuth.Subject{
		ID:        r.ID,
		Email:     r.Email,
		Nickname:  r.Nickname,
		Roles:     r.Roles,
		Passkeys:  r.Passkeys,
		Revision:  r.Revision,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r tokenRow) entry() saraAuth.LedgerEntry {
	return saraAuth.LedgerEntry{
		ID:        r.ID,
		SubjectID: r.SubjectID,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}
