package domain

import "time"

// Document provides the fields shared by every stored entity.
// It is embedded in each domain type so both store backends persist
// the same identity and timestamps.
type Document struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Touch updates the UpdatedAt timestamp to the current time.
// Call this whenever the underlying entity changes.
func (d *Document) Touch() {
	d.UpdatedAt = time.Now().UTC()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (d *Document) InitTimestamps() {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
}
