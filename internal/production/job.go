package production

import (
	"time"

	"github.com/suPer8Hu/ai-prime/internal/ai"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusGenerating Status = "generating"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
	StatusScheduled  Status = "scheduled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusGenerating, StatusPublished, StatusFailed, StatusScheduled:
		return true
	}
	return false
}

const (
	AspectLandscape = "16:9"
	AspectPortrait  = "9:16"
)

// Status message keys written by the processor.
const (
	MsgEnhancing   = "jobs.enhancing"
	MsgRendering   = "jobs.rendering"
	MsgDownloading = "jobs.downloading"
)

type Job struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	Position int64  `gorm:"index;not null" json:"-"`

	Prompt         string `gorm:"type:text;not null" json:"prompt"`
	EnhancedPrompt string `gorm:"type:text" json:"enhancedPrompt,omitempty"`
	AspectRatio    string `gorm:"type:varchar(8);not null" json:"aspectRatio"`
	Is8K           bool   `gorm:"not null;default:false" json:"is8K"`
	Language       string `gorm:"type:varchar(35)" json:"language,omitempty"`

	Status   Status `gorm:"type:varchar(16);index;not null" json:"status"`
	Progress int    `gorm:"not null;default:0" json:"progress"`

	VideoURL string       `gorm:"type:text" json:"videoUrl,omitempty"`
	Metadata *ai.Metadata `gorm:"type:text;serializer:json" json:"metadata,omitempty"`

	ScheduledDay string `gorm:"type:varchar(32)" json:"scheduledDay,omitempty"`
	Platform     string `gorm:"type:varchar(32)" json:"platform,omitempty"`

	StatusMessage string `gorm:"type:varchar(64)" json:"statusMessage,omitempty"`
	Error         string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Job) TableName() string { return "production_jobs" }

var transitions = map[Status][]Status{
	StatusQueued:     {StatusGenerating},
	StatusGenerating: {StatusPublished, StatusFailed},
	StatusPublished:  {StatusScheduled},
	StatusScheduled:  {StatusScheduled},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// processorOwned are the statuses only the processor may write.
func processorOwned(s Status) bool {
	return s == StatusGenerating || s == StatusPublished || s == StatusFailed
}
