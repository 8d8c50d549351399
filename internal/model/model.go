// Package model defines the entities exchanged with the petflix API.
package model

import "time"

// Profile is the snapshot of the authenticated user returned by /users/me.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the account creation payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// ProfileUpdate carries editable profile fields; nil fields are left unchanged.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Video is a shared YouTube video.
type Video struct {
	ID           string    `json:"id"`
	YouTubeID    string    `json:"youtube_video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	LikeCount    int       `json:"like_count"`
	RepostCount  int       `json:"repost_count"`
	ViewCount    int       `json:"view_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// VideoShare is the payload for sharing a new video.
type VideoShare struct {
	YouTubeURL  string `json:"youtube_url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// VideoPage is a listing response.
type VideoPage struct {
	Videos []Video `json:"videos"`
	Total  int     `json:"total,omitempty"`
	Page   int     `json:"page,omitempty"`
	Limit  int     `json:"limit,omitempty"`
}

// LikeState is the like status of a video for the current user.
type LikeState struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// RepostState is the repost status of a video for the current user.
type RepostState struct {
	Reposted    bool `json:"reposted"`
	RepostCount int  `json:"repost_count"`
}

// Playlist is a user-curated list of videos.
type Playlist struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	Videos      []Video   `json:"videos,omitempty"`
	VideoCount  int       `json:"video_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlaylistDraft is the payload for creating a playlist.
type PlaylistDraft struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"is_public"`
}

// Notification is an inbox entry.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	ActorID   string    `json:"actor_id,omitempty"`
	VideoID   string    `json:"video_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationPage is the inbox listing response.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
