package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// APIClient is a registered third-party provider (PISP). Every consent and
// payment submission is scoped to the owning client id.
type APIClient struct {
	ID         string    `json:"client_id" gorm:"primaryKey;size:64"`
	Name       string    `json:"name" gorm:"size:128;not null;uniqueIndex"`
	SecretHash []byte    `json:"-" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *APIClient) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return
}

func (c *APIClient) SetSecret(secret string) {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(secret), 12)
	c.SecretHash = hashed
}

func (c *APIClient) CompareSecret(secret string) error {
	return bcrypt.CompareHashAndPassword(c.SecretHash, []byte(secret))
}
