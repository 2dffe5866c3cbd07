package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kidandcat/tracker/internal/db"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *db.User) error
	GetUser(ctx context.Context, id int64) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, p *db.Project) error
	GetProject(ctx context.Context, id int64) (*db.Project, error)
	ListProjectsForUser(ctx context.Context, userID int64) ([]db.Project, error)
	GetChatByProject(ctx context.Context, projectID int64) (*db.Chat, error)
	GetChat(ctx context.Context, id int64) (*db.Chat, error)
	SetRole(ctx context.Context, projectID, userID int64, role db.Role) error
	RemoveRole(ctx context.Context, projectID, userID int64) error
	DeleteProject(ctx context.Context, id int64) ([]db.Attachment, error)
}

type IssueStore interface {
	GetIssue(ctx context.Context, id int64) (*db.Issue, error)
	ListIssuesByProject(ctx context.Context, projectID int64) ([]db.Issue, error)
	ListIssuesByMilestone(ctx context.Context, milestoneID int64) ([]db.Issue, error)
	SaveIssue(ctx context.Context, issue *db.Issue) error
	DeleteIssue(ctx context.Context, id int64) ([]db.Attachment, error)
}

type MilestoneStore interface {
	GetMilestone(ctx context.Context, id int64) (*db.Milestone, error)
	ListMilestonesByProject(ctx context.Context, projectID int64) ([]db.Milestone, error)
	SaveMilestone(ctx context.Context, m *db.Milestone) error
	DeleteMilestone(ctx context.Context, id int64) error
}

type MessageStore interface {
	GetMessage(ctx context.Context, id int64) (*db.Message, error)
	ListMessagesByChat(ctx context.Context, chatID int64) ([]db.Message, error)
	SaveMessage(ctx context.Context, m *db.Message) error
	DeleteMessage(ctx context.Context, id int64) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, c *db.Comment) error
	GetComment(ctx context.Context, id int64) (*db.Comment, error)
	ListCommentsByIssue(ctx context.Context, issueID int64) ([]db.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

type AttachmentStore interface {
	CreateAttachment(ctx context.Context, a *db.Attachment) error
	GetAttachment(ctx context.Context, id int64) (*db.Attachment, error)
	ListAttachmentsByIssue(ctx context.Context, issueID int64) ([]db.Attachment, error)
	DeleteAttachment(ctx context.Context, id int64) error
}

type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv *db.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*db.Invitation, error)
	MarkInvitationAccepted(ctx context.Context, id int64, at time.Time) error
}

// Store is everything the services persist through. *db.Store
// implements it.
type Store interface {
	UserStore
	ProjectStore
	IssueStore
	MilestoneStore
	MessageStore
	CommentStore
	AttachmentStore
	InvitationStore
}

// Blobs keeps attachment contents.
type Blobs interface {
	Save(issueID int64, name string, r io.Reader) (string, int64, error)
	Open(rel string) (*os.File, error)
	Remove(rel string) error
}

// Broadcaster pushes live events to the clients watching a project.
type Broadcaster interface {
	Publish(projectID int64, eventType string, data any)
}

type Mailer interface {
	SendInvitation(ctx context.Context, to, projectName, link string) error
}

type TokenIssuer interface {
	Issue(userID int64, email string) (string, error)
	Parse(token string) (int64, error)
}

type Deps struct {
	Store  Store
	Blobs  Blobs
	Hub    Broadcaster
	Mailer Mailer
	Tokens TokenIssuer
	// InviteURL is the accept-invitation page; the token is appended as a
	// query parameter.
	InviteURL string
	Log       *slog.Logger
	Now       func() time.Time
}

type Services struct {
	Users       *UserService
	Projects    *ProjectService
	Issues      *IssueService
	Milestones  *MilestoneService
	Messages    *MessageService
	Comments    *CommentService
	Attachments *AttachmentService
}

func New(d Deps) *Services {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Hub == nil {
		d.Hub = nopBroadcaster{}
	}

	users := &UserService{store: d.Store, tokens: d.Tokens}
	return &Services{
		Users: users,
		Projects: &ProjectService{
			store:     d.Store,
			blobs:     d.Blobs,
			mailer:    d.Mailer,
			inviteURL: d.InviteURL,
			log:       d.Log,
			now:       d.Now,
		},
		Issues:      &IssueService{store: d.Store, blobs: d.Blobs, log: d.Log, now: d.Now},
		Milestones:  &MilestoneService{store: d.Store, now: d.Now},
		Messages:    &MessageService{store: d.Store, hub: d.Hub, now: d.Now},
		Comments:    &CommentService{store: d.Store, now: d.Now},
		Attachments: &AttachmentService{store: d.Store, blobs: d.Blobs, log: d.Log, now: d.Now},
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(int64, string, any) {}

// removeBlobs deletes attachment contents after their rows are gone. A
// failure leaves an orphaned blob, which is logged and otherwise ignored.
func removeBlobs(blobs Blobs, log *slog.Logger, attachments []db.Attachment) {
	if blobs == nil {
		return
	}
	for _, a := range attachments {
		if err := blobs.Remove(a.FilePath); err != nil {
			log.Error("remove attachment blob", "attachment_id", a.ID, "path", a.FilePath, "err", err)
		}
	}
}
