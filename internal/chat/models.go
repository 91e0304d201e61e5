package chat

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Session modes. The mode is a hint from the UI; the classifier still runs
// for "default" sessions.
const (
	ModeDefault     = "default"
	ModeAnalysis    = "data-analysis"
	ModePreparation = "data-preparation"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Session struct {
	ID                 string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID             string    `gorm:"type:varchar(64);index;not null" json:"-"`
	Title              string    `gorm:"type:varchar(255);not null" json:"title"`
	Mode               string    `gorm:"type:varchar(32);not null" json:"mode"`
	CurrentDataVersion string    `gorm:"type:varchar(16);not null" json:"currentDataVersion"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (Session) TableName() string { return "sessions" }

// Artifacts is the optional payload attached to an assistant message:
// either an inline base64 image or a file reference, never both.
type Artifacts struct {
	ImageBase64 string `json:"imageBase64,omitempty"`
	FileURL     string `json:"fileUrl,omitempty"`
	FileName    string `json:"fileName,omitempty"`
}

func (a Artifacts) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Artifacts) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("chat: unsupported artifacts column type")
	}
}

type Message struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID string     `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Role      string     `gorm:"type:varchar(16);not null" json:"role"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Artifacts *Artifacts `gorm:"type:text" json:"artifacts,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (Message) TableName() string { return "messages" }

// DataVersion is one append-only snapshot of a session's working dataset.
// Labels are "v0", "v1", ... derived from the count of existing versions;
// "latest" is defined by created_at, not by label.
type DataVersion struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID   string    `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Version     string    `gorm:"type:varchar(16);not null" json:"version"`
	FileName    string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FileURL     string    `gorm:"type:text;not null" json:"fileUrl"`
	FileSize    *int64    `json:"fileSize,omitempty"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (DataVersion) TableName() string { return "data_versions" }
