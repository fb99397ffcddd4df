package models

import (
	"encoding/xml"
	"time"
)

// Target field names that moderation policies may reference
const (
	FieldEnableComments = "enable_comments"
	FieldPublishedAt    = "published_at"
	FieldCreatedAt      = "created_at"
)

// Target is a commentable object registered with the service
type Target struct {
	XMLName        xml.Name  `json:"-" xml:"target"`
	ContentType    string    `json:"content_type" xml:"content_type" db:"content_type"`
	ObjectID       string    `json:"object_id" xml:"object_id" db:"object_id"`
	Title          string    `json:"title" xml:"title" db:"title"`
	URL            string    `json:"url,omitempty" xml:"url,omitempty" db:"url"`
	EnableComments bool      `json:"enable_comments" xml:"enable_comments" db:"enable_comments"`
	PublishedAt    time.Time `json:"published_at" xml:"published_at" db:"published_at"`
	CreatedAt      time.Time `json:"created_at" xml:"created_at" db:"created_at"`
}

// Ref returns the target's reference
func (t *Target) Ref() TargetRef {
	return TargetRef{ContentType: t.ContentType, ObjectID: t.ObjectID}
}

// Flag returns a boolean field by name
func (t *Target) Flag(name string) (bool, bool) {
	switch name {
	case FieldEnableComments:
		return t.EnableComments, true
	}
	return false, false
}

// Date returns a timestamp field by name
func (t *Target) Date(name string) (time.Time, bool) {
	switch name {
	case FieldPublishedAt:
		return t.PublishedAt, true
	case FieldCreatedAt:
		return t.CreatedAt, true
	}
	return time.Time{}, false
}

// TargetRequest is the form accepted when registering a target
type TargetRequest struct {
	Title          string `form:"title" json:"title"`
	URL            string `form:"url" json:"url"`
	EnableComments *bool  `form:"enable_comments" json:"enable_comments"`
	PublishedAt    string `form:"published_at" json:"published_at"` // RFC3339, defaults to now
}
