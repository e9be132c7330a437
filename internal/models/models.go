package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values for Profile.Role. Roles are fixed at registration.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Submission status values. Transitions are one-directional from pending.
const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

// Submission content types.
const (
	ContentTypeText = "text"
	ContentTypeFile = "file"
)

// User is the identity record: the thing that authenticates.
// Application-level attributes live in Profile, keyed by the same id.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string         `gorm:"size:255" json:"-"` // bcrypt hash, empty for LDAP users
	AuthType  string         `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Profile is the application user record layered on top of the identity.
// A registration that creates a User but fails to create a Profile leaves
// the account in a reported "profile pending" state.
type Profile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"` // = User.ID
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Role      string    `gorm:"size:20;not null" json:"role"` // teacher, student
	AvatarURL string    `gorm:"size:500" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshToken is a rotated, sha256-hashed session continuation token.
type RefreshToken struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"index;not null" json:"user_id"`
	TokenHash         string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt         time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt         *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	ReplacedByTokenID *uint      `gorm:"index" json:"replaced_by_token_id,omitempty"`
	CreatedByIP       string     `gorm:"size:64" json:"created_by_ip,omitempty"`
	UserAgent         string     `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Group is a named set of students that submits work as one unit.
type Group struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	CreatedBy uint           `gorm:"index;not null" json:"created_by"` // teacher profile id
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// GroupMember links a student to a group. The unique index on StudentID
// enforces at most one group per student; this join table is the only
// authority for membership.
type GroupMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"index;not null" json:"group_id"`
	StudentID uint      `gorm:"uniqueIndex;not null" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a teacher-authored body of work assigned to one group.
type Project struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	TeacherID   uint           `gorm:"index;not null" json:"teacher_id"`
	GroupID     uint           `gorm:"index;not null" json:"group_id"`
	Tasks       []Task         `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Task is a unit of work inside a project. Completion is an explicit
// teacher action; approving a submission does not flip IsCompleted.
type Task struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	ProjectID   uint         `gorm:"index;not null" json:"project_id"`
	Title       string       `gorm:"size:200;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	IsCompleted bool         `gorm:"default:false" json:"is_completed"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Submissions []Submission `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"submissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Submission is a group's delivered artifact against a task. Content is
// either raw text or the public URL of an uploaded file. The submission
// with the latest SubmittedAt is the group's current answer.
type Submission struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TaskID      uint       `gorm:"index;not null" json:"task_id"`
	GroupID     uint       `gorm:"index;not null" json:"group_id"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ContentType string     `gorm:"size:10;default:text" json:"content_type"` // text, file
	Status      string     `gorm:"size:20;default:pending" json:"status"`    // pending, approved, rejected
	SubmittedAt time.Time  `gorm:"index" json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *uint      `json:"reviewed_by,omitempty"`
	Feedback    string     `gorm:"type:text" json:"feedback"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SystemLog records auditable application events (writes, reminders,
// notifications). The leaderboard activity feed reads from it.
type SystemLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:20;index" json:"level"` // info, warning, error
	Module    string    `gorm:"size:100;index" json:"module"`
	Action    string    `gorm:"size:200;index" json:"action"`
	Message   string    `gorm:"type:text" json:"message"`
	UserID    *uint     `json:"user_id"`
	IP        string    `gorm:"size:50" json:"ip"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	Extra     string    `gorm:"type:text" json:"extra"` // JSON extra data
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName overrides
func (User) TableName() string         { return "users" }
func (Profile) TableName() string      { return "profiles" }
func (RefreshToken) TableName() string { return "refresh_tokens" }
func (Group) TableName() string        { return "groups" }
func (GroupMember) TableName() string  { return "group_members" }
func (Project) TableName() string      { return "projects" }
func (Task) TableName() string         { return "tasks" }
func (Submission) TableName() string   { return "submissions" }
func (SystemLog) TableName() string    { return "system_logs" }

// IsReviewed reports whether the submission has left the pending state.
func (s *Submission) IsReviewed() bool {
	return s.Status != SubmissionPending
}

// Progress returns the completed fraction of the project's tasks as a
// percentage. A project with no tasks is 0%, not a division by zero.
func (p *Project) Progress() float64 {
	if len(p.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range p.Tasks {
		if t.IsCompleted {
			done++
		}
	}
	return float64(done) / float64(len(p.Tasks)) * 100
}
