package models

import "time"

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusClosed    SessionStatus = "closed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

type ParticipantStatus string

const (
	ParticipantStatusActive  ParticipantStatus = "active"
	ParticipantStatusLeft    ParticipantStatus = "left"
	ParticipantStatusRemoved ParticipantStatus = "removed"
)

// TableSession is one open bill at a table.
//
// ActiveTableID and ActiveJoinCode mirror TableID and JoinCode while the
// session is active and are NULL once it ends. Their unique indexes make
// "one active session per table" and "join code unique among active sessions"
// hold in the store itself on every supported dialect.
type TableSession struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	RestaurantID    uint          `gorm:"not null;index;uniqueIndex:idx_active_join_code,priority:1" json:"restaurant_id"`
	Restaurant      Restaurant    `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	TableID         uint          `gorm:"not null;index" json:"table_id"`
	Table           Table         `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE" json:"-"`
	JoinCode        string        `gorm:"type:varchar(16);not null" json:"join_code"`
	ActiveTableID   *uint         `gorm:"uniqueIndex:idx_active_table" json:"-"`
	ActiveJoinCode  *string       `gorm:"type:varchar(16);uniqueIndex:idx_active_join_code,priority:2" json:"-"`
	HostDeviceID    string        `gorm:"type:varchar(128);not null" json:"host_device_id"`
	PersonsCount    int           `gorm:"not null;default:1" json:"persons_count"`
	Status          SessionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CalculatedTotal float64       `gorm:"type:decimal(10,2);not null;default:0" json:"calculated_total"`
	EndedBy         *uint         `json:"ended_by,omitempty"`
	StartTime       time.Time     `gorm:"not null" json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`

	Participants []Participant `gorm:"foreignKey:SessionID" json:"participants,omitempty"`
}

func (s *TableSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

type Participant struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	SessionID   uint              `gorm:"not null;uniqueIndex:idx_participant_session_device,priority:1" json:"session_id"`
	Session     *TableSession     `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	DeviceID    string            `gorm:"type:varchar(128);not null;uniqueIndex:idx_participant_session_device,priority:2;index" json:"device_id"`
	DisplayName string            `gorm:"type:varchar(100)" json:"display_name"`
	Status      ParticipantStatus `gorm:"type:varchar(16);not null" json:"status"`
	JoinedAt    time.Time         `gorm:"not null" json:"joined_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}
