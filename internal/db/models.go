package db

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Project struct {
	ID          int64         `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	OwnerID     int64         `gorm:"not null;index" json:"ownerId"`
	Owner       *User         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Roles       []ProjectRole `gorm:"foreignKey:ProjectID" json:"roles,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type ProjectRole struct {
	ID        int64 `gorm:"primaryKey" json:"-"`
	ProjectID int64 `gorm:"not null;uniqueIndex:idx_project_user" json:"projectId"`
	UserID    int64 `gorm:"not null;uniqueIndex:idx_project_user" json:"userId"`
	User      *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      Role  `gorm:"type:varchar(20);not null" json:"role"`
}

// RoleOf returns the role userID holds on p, or "" when none.
// Roles must be loaded.
func (p *Project) RoleOf(userID int64) Role {
	for _, r := range p.Roles {
		if r.UserID == userID {
			return r.Role
		}
	}
	return ""
}

type Chat struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:255" json:"name"`
	ProjectID    int64  `gorm:"not null;uniqueIndex" json:"projectId"`
	Participants []User `gorm:"many2many:chat_users" json:"participants,omitempty"`
}

type Message struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;not null;index" json:"createdAt"`
	SenderID  int64     `gorm:"not null" json:"senderId"`
	Sender    *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ChatID    int64     `gorm:"not null;index" json:"chatId"`
}

type Issue struct {
	ID          int64         `gorm:"primaryKey" json:"id"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Status      IssueStatus   `gorm:"type:varchar(20);not null" json:"status"`
	Priority    IssuePriority `gorm:"type:varchar(20);not null" json:"priority"`
	Type        IssueType     `gorm:"type:varchar(20);not null" json:"type"`
	ProjectID   int64         `gorm:"not null;index" json:"projectId"`
	CreatorID   int64         `gorm:"not null" json:"creatorId"`
	AssigneeID  *int64        `json:"assigneeId"`
	Assignee    *User         `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	DueDate     *time.Time    `json:"dueDate"`
	MilestoneID *int64        `gorm:"index" json:"milestoneId"`
	Tags        []Tag         `gorm:"many2many:issue_tags" json:"tags"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type Milestone struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	StartDate   *time.Time      `json:"startDate"`
	EndDate     *time.Time      `json:"endDate"`
	Status      MilestoneStatus `gorm:"type:varchar(20);not null" json:"status"`
	ProjectID   int64           `gorm:"not null;index" json:"projectId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// MilestoneProgress is computed on read and never stored.
type MilestoneProgress struct {
	Milestone
	TotalIssues          int     `json:"totalIssues"`
	CompletedIssues      int     `json:"completedIssues"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

type Comment struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;not null" json:"createdAt"`
	UserID    int64     `gorm:"not null" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	IssueID   int64     `gorm:"not null;index" json:"issueId"`
}

type Attachment struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	IssueID    int64     `gorm:"not null;index" json:"issueId"`
	UploaderID int64     `gorm:"not null" json:"uploaderId"`
	FileName   string    `gorm:"size:255;not null" json:"fileName"`
	FileType   string    `gorm:"size:255" json:"fileType"`
	FilePath   string    `gorm:"size:255;not null" json:"-"`
	FileSize   int64     `json:"fileSize"`
	UploadDate time.Time `json:"uploadDate"`
}

type Tag struct {
	ID   int64  `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null;uniqueIndex" json:"name"`
}

type Invitation struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	Token      string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Email      string     `gorm:"size:255;not null" json:"email"`
	ProjectID  int64      `gorm:"not null;index" json:"projectId"`
	CreatedAt  time.Time  `gorm:"autoCreateTime:false;not null" json:"createdAt"`
	AcceptedAt *time.Time `json:"acceptedAt"`
}
