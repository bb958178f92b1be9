package models

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleAuthor = "author"
)

type User struct {
	ID          int64     `json:"id,string"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	Password    []byte    `json:"-"`
	LastSeenAt  time.Time `json:"-"`
}

type Member struct {
	ID          int64     `json:"id,string"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	Online      bool      `json:"online"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

type Channel struct {
	ID           int64    `json:"id,string"`
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon"`
	Color        string   `json:"color"`
	SortOrder    int      `json:"sortOrder"`
	IsPrivate    bool     `json:"isPrivate"`
	AllowedRoles []string `json:"allowedRoles"`
}

type Message struct {
	ID           int64           `json:"id,string"`
	Conversation string          `json:"conversation"`
	AuthorID     int64           `json:"authorID,string"`
	Author       string          `json:"author"`
	Body         string          `json:"body"`
	Attachment   string          `json:"attachment,omitempty"`
	ParentID     int64           `json:"parentID,string,omitempty"`
	IsPinned     bool            `json:"isPinned"`
	Bookmarked   bool            `json:"bookmarked"`
	EditedAt     *time.Time      `json:"editedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Revision     int64           `json:"revision,string"`
	Mentions     IDs             `json:"mentions"`
	Reactions    []ReactionGroup `json:"reactions"`
}

// ReactionGroup is every reaction of one emoji on a message.
type ReactionGroup struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	UserIDs IDs    `json:"userIDs"`
	Mine    bool   `json:"mine"`
}

type ConversationSummary struct {
	Conversation  string    `json:"conversation"`
	Title         string    `json:"title"`
	ChannelID     int64     `json:"channelID,string,omitempty"`
	PeerID        int64     `json:"peerID,string,omitempty"`
	LastMessageID int64     `json:"lastMessageID,string"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Unread        int       `json:"unread"`
}

type ConfigFile struct {
	Address            string
	Port               string
	BehindNginx        bool
	TlsCert            string
	TlsKey             string
	Cors               bool
	PrintHttpRequests  bool
	LogToFile          bool
	LogLevel           string
	JwtSecret          string
	SnowflakeWorkerID  int64
	SelfContained      bool
	DbUser             string
	DbPassword         string
	DbAddress          string
	DbPort             string
	DbDatabase         string
	RedisAddress       string
	RedisPassword      string
	RedisDB            int
	EditWindowMinutes  int
	PollLimit          int
	OrphanPolicy       string
	AttachmentDir      string
	MaxAttachmentBytes int64
}

// IDs encodes as a list of strings, snowflakes don't fit in a JS number.
type IDs []int64

func (ids IDs) MarshalJSON() ([]byte, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return json.Marshal(out)
}

func (ids *IDs) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed := make(IDs, len(raw))
	for i, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		parsed[i] = id
	}
	*ids = parsed
	return nil
}
