package entity

import "time"

// Match 一场已录制的比赛
type Match struct {
	ID        string     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgID     string     `json:"org_id" gorm:"type:uuid;index;not null"`
	Title     string     `json:"title" gorm:"type:varchar(255);not null"`
	PlayedAt  *time.Time `json:"played_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Match) TableName() string {
	return "matches"
}

// Segment 比赛中的一个时间窗口
type Segment struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MatchID      string    `json:"match_id" gorm:"type:uuid;index;not null"`
	Label        string    `json:"label" gorm:"type:varchar(255)"`
	StartSeconds float64   `json:"start_seconds"`
	EndSeconds   float64   `json:"end_seconds"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Segment) TableName() string {
	return "segments"
}
