package models

import (
	"encoding/xml"
	"time"

	"github.com/threaded-comments-api/internal/markup"
)

// Kind distinguishes registered-user comments from free (anonymous) comments.
// Trees, parents and counts never mix kinds.
type Kind string

const (
	KindComment     Kind = "comment"
	KindFreeComment Kind = "freecomment"
)

// ValidKinds defines allowed comment kinds
var ValidKinds = map[Kind]bool{
	KindComment:     true,
	KindFreeComment: true,
}

// TargetRef identifies the object a comment is attached to
type TargetRef struct {
	ContentType string `json:"content_type" xml:"content_type"`
	ObjectID    string `json:"object_id" xml:"object_id"`
}

func (r TargetRef) String() string {
	return r.ContentType + ":" + r.ObjectID
}

// Author identifies who wrote a comment. Registered comments carry UserID and
// UserName; free comments carry Name, Email and Website.
type Author struct {
	UserID   string `json:"user_id,omitempty" xml:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty" xml:"user_name,omitempty"`
	Name     string `json:"name,omitempty" xml:"name,omitempty"`
	Email    string `json:"email,omitempty" xml:"email,omitempty"`
	Website  string `json:"website,omitempty" xml:"website,omitempty"`
}

// DisplayName returns the name shown next to the comment
func (a Author) DisplayName() string {
	if a.UserName != "" {
		return a.UserName
	}
	return a.Name
}

// Comment represents a threaded comment on a target object
type Comment struct {
	XMLName     xml.Name    `json:"-" xml:"comment"`
	ID          int64       `json:"id" xml:"id" db:"id"`
	Kind        Kind        `json:"kind" xml:"kind" db:"kind"`
	Target      TargetRef   `json:"target" xml:"target"`
	ParentID    *int64      `json:"parent_id,omitempty" xml:"parent_id,omitempty" db:"parent_id"`
	Author      Author      `json:"author" xml:"author"`
	Body        string      `json:"comment" xml:"body" db:"body"`
	Markup      markup.Kind `json:"markup" xml:"markup" db:"markup"`
	SubmittedAt time.Time   `json:"date_submitted" xml:"date_submitted" db:"submitted_at"`
	ModifiedAt  time.Time   `json:"date_modified" xml:"date_modified" db:"modified_at"`
	ApprovedAt  *time.Time  `json:"date_approved,omitempty" xml:"date_approved,omitempty" db:"approved_at"`
	IsPublic    bool        `json:"is_public" xml:"is_public" db:"is_public"`
	IsApproved  bool        `json:"is_approved" xml:"is_approved" db:"is_approved"`
	IPAddress   string      `json:"-" xml:"-" db:"ip_address"`
}

// Visible reports whether the comment is shown in public listings. Staff
// approval makes a comment visible even after moderation hid it.
func (c *Comment) Visible() bool {
	return c.IsPublic || c.IsApproved
}

// IsRoot reports whether the comment has no parent
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// OwnedBy reports whether the registered user wrote this comment
func (c *Comment) OwnedBy(userID string) bool {
	return userID != "" && c.Author.UserID == userID
}

// Node is a comment annotated with its depth in a materialized tree
type Node struct {
	XMLName xml.Name `json:"-" xml:"node"`
	*Comment
	Depth int `json:"depth" xml:"depth"`
}

// MaxNameLength is the maximum length of a free comment author's name
const MaxNameLength = 128

// MaxBodyLength is the hard limit on a comment body, independent of any
// per-content-type moderation policy
const MaxBodyLength = 3000

// CommentForm is the form-encoded body of a new comment
type CommentForm struct {
	Body    string `form:"comment" json:"comment"`
	Markup  string `form:"markup" json:"markup"`
	Parent  string `form:"parent" json:"parent"`
	Name    string `form:"name" json:"name"`
	Email   string `form:"email" json:"email"`
	Website string `form:"website" json:"website"`
}

// EditForm is the form-encoded body of a comment edit
type EditForm struct {
	Body    string `form:"comment" json:"comment"`
	Markup  string `form:"markup" json:"markup"`
	Preview bool   `form:"preview" json:"preview"`
}
