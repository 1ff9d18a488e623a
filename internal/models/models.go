package models

import (
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

const (
	ToolStatusOnline      = "online"
	ToolStatusDevelopment = "development"
	ToolStatusMaintenance = "maintenance"
	ToolStatusOffline     = "offline"
)

const (
	ContentStatusPublished = "published"
	ContentStatusDraft     = "draft"
	ContentStatusArchived  = "archived"
)

type User struct {
	ID           string     `gorm:"primaryKey"              json:"id"`
	Username     string     `gorm:"uniqueIndex;not null"    json:"username"`
	Email        string     `gorm:"uniqueIndex;not null"    json:"email"`
	PasswordHash string     `gorm:"not null"                json:"-"`
	Role         string     `gorm:"not null;default:viewer" json:"role"`
	Permissions  []string   `gorm:"serializer:json"         json:"permissions"`
	IsActive     bool       `gorm:"not null;default:true"   json:"isActive"`
	FullName     string     `json:"fullName,omitempty"`
	Department   string     `json:"department,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Avatar       string     `json:"avatar,omitempty"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Tool struct {
	ID          string    `gorm:"primaryKey"                   json:"id"`
	Name        string    `gorm:"not null"                     json:"name"`
	Description string    `json:"description"`
	Status      string    `gorm:"not null;default:development" json:"status"`
	Category    string    `gorm:"index"                        json:"category"`
	Users       string    `json:"users"`
	URL         string    `json:"url"`
	IsExternal  bool      `json:"isExternal"`
	Tags        []string  `gorm:"serializer:json"              json:"tags"`
	Featured    bool      `gorm:"index"                        json:"featured"`
	Author      string    `json:"author"`
	Version     string    `json:"version"`
	Visits      int64     `gorm:"not null;default:0"           json:"visits"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ContentItem struct {
	ID          string     `gorm:"primaryKey"             json:"id"`
	Title       string     `gorm:"not null"               json:"title"`
	Type        string     `gorm:"not null"               json:"type"`
	Content     string     `json:"content,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description,omitempty"`
	Author      string     `gorm:"not null"               json:"author"`
	Status      string     `gorm:"not null;default:draft" json:"status"`
	Category    string     `gorm:"index"                  json:"category"`
	Tags        []string   `gorm:"serializer:json"        json:"tags"`
	Views       int64      `gorm:"not null;default:0"     json:"views"`
	Featured    bool       `json:"featured"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type FavoriteTool struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                json:"id"`
	UserID    string    `gorm:"index:idx_fav_user_tool,unique;not null" json:"user_id"`
	ToolID    string    `gorm:"index:idx_fav_user_tool,unique;not null" json:"tool_id"`
	CreatedAt time.Time `json:"created_at"`
}

type PasswordReset struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"index;not null"           json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;not null"     json:"-"`
	ExpiresAt time.Time `gorm:"not null"                 json:"expires_at"`
	Used      bool      `gorm:"default:false"            json:"used"`
}
