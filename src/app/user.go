package app

import "time"

// Image is the core persisted record for one stored media object. Owner and
// URL never change after creation; AdditionalInfo is the only field the owner
// edits directly.
type Image struct {
	ID             string    `gorm:"primaryKey" json:"_id"`
	OwnerID        string    `gorm:"index;not null" json:"author"`
	URL            string    `gorm:"not null" json:"url"`
	Tags           []string  `gorm:"serializer:json" json:"tags"`
	Description    string    `json:"description"`
	AdditionalInfo string    `json:"additionalInfo"`
	CreatedAt      time.Time `json:"createdAt"`
}

// User owns a set of Images. Email is stored lowercased and unique.
type User struct {
	ID           string  `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"not null" json:"name"`
	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string  `json:"-"`
	Images       []Image `gorm:"foreignKey:OwnerID" json:"images,omitempty"`

	CreatedAt time.Time `json:"-"`
}

// MediaInput is one incoming media submission: either a local temporary file
// or a remote URL, never both.
type MediaInput struct {
	LocalPath string
	RemoteURL string
}
