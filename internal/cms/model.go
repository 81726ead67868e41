package cms

import "time"

// Article is a published-or-draft content item owned by one category and one
// member, optionally carrying one processed image.
type Article struct {
	ID         uint   `gorm:"primaryKey"`
	Title      string `gorm:"size:80;uniqueIndex;not null"`
	Summary    string `gorm:"size:254;not null"`
	Content    string `gorm:"type:text;not null"`
	CategoryID uint   `gorm:"not null"`
	MemberID   uint   `gorm:"not null"`
	ImageID    *uint
	Published  bool      `gorm:"not null;default:false"`
	Created    time.Time `gorm:"autoCreateTime"`

	Category Category `gorm:"constraint:OnDelete:RESTRICT"`
	Member   Member   `gorm:"constraint:OnDelete:RESTRICT"`
	Image    *Image   `gorm:"constraint:OnDelete:RESTRICT"`
}

// TableName defines the table name for the Article model.
func (Article) TableName() string {
	return "article"
}

// Category is a named grouping for articles, optionally shown in navigation.
type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:24;uniqueIndex;not null" json:"name"`
	Description string `gorm:"size:254;not null" json:"description"`
	Navigation  bool   `gorm:"not null;default:false" json:"navigation"`
}

// TableName defines the table name for the Category model.
func (Category) TableName() string {
	return "category"
}

// Member is an author profile. Members are read-only in this application.
type Member struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Forename string    `gorm:"size:254;not null" json:"forename"`
	Surname  string    `gorm:"size:254;not null" json:"surname"`
	Joined   time.Time `gorm:"not null" json:"joined"`
	Picture  *string   `gorm:"size:254" json:"picture,omitempty"`
}

// TableName defines the table name for the Member model.
func (Member) TableName() string {
	return "member"
}

// Image is an uploaded, server-processed picture attached to at most one
// article. The row and the backing file share a lifecycle: neither outlives
// the owning article's reference.
type Image struct {
	ID   uint   `gorm:"primaryKey"`
	File string `gorm:"size:254;uniqueIndex;not null"`
	Alt  string `gorm:"size:254;not null"`
}

// TableName defines the table name for the Image model.
func (Image) TableName() string {
	return "image"
}

// ArticleDetail is the full article row joined with its category name, author
// full name and image metadata.
type ArticleDetail struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Content    string    `json:"content"`
	Created    time.Time `json:"created"`
	CategoryID uint      `json:"category_id"`
	MemberID   uint      `json:"member_id"`
	Published  bool      `json:"published"`
	Category   string    `json:"category"`
	Author     string    `json:"author"`
	ImageID    *uint     `json:"image_id,omitempty"`
	ImageFile  *string   `json:"image_file,omitempty"`
	ImageAlt   *string   `json:"image_alt,omitempty"`
}

// ArticleSummary is the listing row: everything except the article body.
type ArticleSummary struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Created    time.Time `json:"created"`
	CategoryID uint      `json:"category_id"`
	MemberID   uint      `json:"member_id"`
	Published  bool      `json:"published"`
	Category   string    `json:"category"`
	Author     string    `json:"author"`
	ImageFile  *string   `json:"image_file,omitempty"`
	ImageAlt   *string   `json:"image_alt,omitempty"`
}
