package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
	"github.com/kidandcat/tracker/internal/files"
)

// fakeStore is an in-memory Store. Values are copied in and out so tests
// see the same aliasing rules as the database.
type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]db.User
	projects    map[int64]db.Project
	roles       map[int64]db.ProjectRole
	chats       map[int64]db.Chat
	chatUsers   map[int64]map[int64]bool
	messages    map[int64]db.Message
	issues      map[int64]db.Issue
	milestones  map[int64]db.Milestone
	comments    map[int64]db.Comment
	attachments map[int64]db.Attachment
	invitations map[int64]db.Invitation
	tags        map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[int64]db.User{},
		projects:    map[int64]db.Project{},
		roles:       map[int64]db.ProjectRole{},
		chats:       map[int64]db.Chat{},
		chatUsers:   map[int64]map[int64]bool{},
		messages:    map[int64]db.Message{},
		issues:      map[int64]db.Issue{},
		milestones:  map[int64]db.Milestone{},
		comments:    map[int64]db.Comment{},
		attachments: map[int64]db.Attachment{},
		invitations: map[int64]db.Invitation{},
		tags:        map[string]int64{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Users

func (f *fakeStore) CreateUser(_ context.Context, u *db.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return errs.Conflict("email %s is already registered", u.Email)
		}
	}
	u.ID = f.id()
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errs.NotFound("user %d not found", id)
	}
	return &u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, errs.NotFound("user %s not found", email)
}

// Projects

func (f *fakeStore) CreateProject(_ context.Context, p *db.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	f.projects[p.ID] = db.Project{ID: p.ID, Name: p.Name, Description: p.Description, OwnerID: p.OwnerID}
	role := db.ProjectRole{ID: f.id(), ProjectID: p.ID, UserID: p.OwnerID, Role: db.RoleOwner}
	f.roles[role.ID] = role
	chat := db.Chat{ID: f.id(), Name: p.Name, ProjectID: p.ID}
	f.chats[chat.ID] = chat
	f.chatUsers[chat.ID] = map[int64]bool{p.OwnerID: true}
	return nil
}

func (f *fakeStore) GetProject(_ context.Context, id int64) (*db.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, errs.NotFound("project %d not found", id)
	}
	for _, rid := range sortedKeys(f.roles) {
		if r := f.roles[rid]; r.ProjectID == id {
			p.Roles = append(p.Roles, r)
		}
	}
	if owner, ok := f.users[p.OwnerID]; ok {
		p.Owner = &owner
	}
	return &p, nil
}

func (f *fakeStore) ListProjectsForUser(_ context.Context, userID int64) ([]db.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Project
	for _, pid := range sortedKeys(f.projects) {
		for _, r := range f.roles {
			if r.ProjectID == pid && r.UserID == userID {
				out = append(out, f.projects[pid])
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) chatFor(projectID int64) (db.Chat, bool) {
	for _, c := range f.chats {
		if c.ProjectID == projectID {
			return c, true
		}
	}
	return db.Chat{}, false
}

func (f *fakeStore) withParticipants(c db.Chat) *db.Chat {
	for _, uid := range sortedKeys(f.chatUsers[c.ID]) {
		c.Participants = append(c.Participants, f.users[uid])
	}
	return &c
}

func (f *fakeStore) GetChatByProject(_ context.Context, projectID int64) (*db.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chatFor(projectID)
	if !ok {
		return nil, errs.NotFound("chat not found for project %d", projectID)
	}
	return f.withParticipants(c), nil
}

func (f *fakeStore) GetChat(_ context.Context, id int64) (*db.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return nil, errs.NotFound("chat %d not found", id)
	}
	return &c, nil
}

func (f *fakeStore) SetRole(_ context.Context, projectID, userID int64, role db.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.roles {
		if r.ProjectID == projectID && r.UserID == userID {
			r.Role = role
			f.roles[id] = r
			return nil
		}
	}
	r := db.ProjectRole{ID: f.id(), ProjectID: projectID, UserID: userID, Role: role}
	f.roles[r.ID] = r
	if c, ok := f.chatFor(projectID); ok {
		f.chatUsers[c.ID][userID] = true
	}
	return nil
}

func (f *fakeStore) RemoveRole(_ context.Context, projectID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.roles {
		if r.ProjectID == projectID && r.UserID == userID {
			delete(f.roles, id)
			if c, ok := f.chatFor(projectID); ok {
				delete(f.chatUsers[c.ID], userID)
			}
			return nil
		}
	}
	return errs.NotFound("user %d is not a member of project %d", userID, projectID)
}

func (f *fakeStore) DeleteProject(_ context.Context, id int64) ([]db.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; !ok {
		return nil, errs.NotFound("project %d not found", id)
	}
	var removed []db.Attachment
	for iid, is := range f.issues {
		if is.ProjectID == id {
			removed = append(removed, f.deleteIssueLocked(iid)...)
		}
	}
	for mid, m := range f.milestones {
		if m.ProjectID == id {
			delete(f.milestones, mid)
		}
	}
	if c, ok := f.chatFor(id); ok {
		for mid, m := range f.messages {
			if m.ChatID == c.ID {
				delete(f.messages, mid)
			}
		}
		delete(f.chatUsers, c.ID)
		delete(f.chats, c.ID)
	}
	for rid, r := range f.roles {
		if r.ProjectID == id {
			delete(f.roles, rid)
		}
	}
	for iid, inv := range f.invitations {
		if inv.ProjectID == id {
			delete(f.invitations, iid)
		}
	}
	delete(f.projects, id)
	return removed, nil
}

// Issues

func cloneIssue(is db.Issue) db.Issue {
	if is.AssigneeID != nil {
		v := *is.AssigneeID
		is.AssigneeID = &v
	}
	if is.MilestoneID != nil {
		v := *is.MilestoneID
		is.MilestoneID = &v
	}
	if is.DueDate != nil {
		v := *is.DueDate
		is.DueDate = &v
	}
	is.Tags = append([]db.Tag(nil), is.Tags...)
	is.Assignee = nil
	return is
}

func (f *fakeStore) loadIssue(is db.Issue) db.Issue {
	is = cloneIssue(is)
	if is.AssigneeID != nil {
		if u, ok := f.users[*is.AssigneeID]; ok {
			is.Assignee = &u
		}
	}
	return is
}

func (f *fakeStore) GetIssue(_ context.Context, id int64) (*db.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	is, ok := f.issues[id]
	if !ok {
		return nil, errs.NotFound("issue %d not found", id)
	}
	is = f.loadIssue(is)
	return &is, nil
}

func (f *fakeStore) listIssues(match func(db.Issue) bool) []db.Issue {
	var out []db.Issue
	for _, id := range sortedKeys(f.issues) {
		if is := f.issues[id]; match(is) {
			out = append(out, f.loadIssue(is))
		}
	}
	return out
}

func (f *fakeStore) ListIssuesByProject(_ context.Context, projectID int64) ([]db.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listIssues(func(is db.Issue) bool { return is.ProjectID == projectID }), nil
}

func (f *fakeStore) ListIssuesByMilestone(_ context.Context, milestoneID int64) ([]db.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listIssues(func(is db.Issue) bool {
		return is.MilestoneID != nil && *is.MilestoneID == milestoneID
	}), nil
}

func (f *fakeStore) SaveIssue(_ context.Context, issue *db.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if issue.ID == 0 {
		issue.ID = f.id()
	}
	for i := range issue.Tags {
		t := &issue.Tags[i]
		if t.ID != 0 {
			continue
		}
		if id, ok := f.tags[t.Name]; ok {
			t.ID = id
		} else {
			t.ID = f.id()
			f.tags[t.Name] = t.ID
		}
	}
	f.issues[issue.ID] = cloneIssue(*issue)
	return nil
}

func (f *fakeStore) deleteIssueLocked(id int64) []db.Attachment {
	var removed []db.Attachment
	for aid, a := range f.attachments {
		if a.IssueID == id {
			removed = append(removed, a)
			delete(f.attachments, aid)
		}
	}
	for cid, c := range f.comments {
		if c.IssueID == id {
			delete(f.comments, cid)
		}
	}
	delete(f.issues, id)
	return removed
}

func (f *fakeStore) DeleteIssue(_ context.Context, id int64) ([]db.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.issues[id]; !ok {
		return nil, errs.NotFound("issue %d not found", id)
	}
	return f.deleteIssueLocked(id), nil
}

// Milestones

func (f *fakeStore) GetMilestone(_ context.Context, id int64) (*db.Milestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.milestones[id]
	if !ok {
		return nil, errs.NotFound("milestone %d not found", id)
	}
	return &m, nil
}

func (f *fakeStore) ListMilestonesByProject(_ context.Context, projectID int64) ([]db.Milestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Milestone
	for _, id := range sortedKeys(f.milestones) {
		if m := f.milestones[id]; m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveMilestone(_ context.Context, m *db.Milestone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == 0 {
		m.ID = f.id()
	}
	f.milestones[m.ID] = *m
	return nil
}

func (f *fakeStore) DeleteMilestone(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.milestones[id]; !ok {
		return errs.NotFound("milestone %d not found", id)
	}
	delete(f.milestones, id)
	return nil
}

// Messages

func (f *fakeStore) GetMessage(_ context.Context, id int64) (*db.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, errs.NotFound("message %d not found", id)
	}
	return &m, nil
}

func (f *fakeStore) ListMessagesByChat(_ context.Context, chatID int64) ([]db.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Message
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeStore) SaveMessage(_ context.Context, m *db.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == 0 {
		m.ID = f.id()
	}
	stored := *m
	stored.Sender = nil
	f.messages[m.ID] = stored
	return nil
}

func (f *fakeStore) DeleteMessage(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[id]; !ok {
		return errs.NotFound("message %d not found", id)
	}
	delete(f.messages, id)
	return nil
}

// Comments

func (f *fakeStore) CreateComment(_ context.Context, c *db.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	f.comments[c.ID] = *c
	return nil
}

func (f *fakeStore) GetComment(_ context.Context, id int64) (*db.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, errs.NotFound("comment %d not found", id)
	}
	return &c, nil
}

func (f *fakeStore) ListCommentsByIssue(_ context.Context, issueID int64) ([]db.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Comment
	for _, id := range sortedKeys(f.comments) {
		if c := f.comments[id]; c.IssueID == issueID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteComment(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return errs.NotFound("comment %d not found", id)
	}
	delete(f.comments, id)
	return nil
}

// Attachments

func (f *fakeStore) CreateAttachment(_ context.Context, a *db.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.id()
	f.attachments[a.ID] = *a
	return nil
}

func (f *fakeStore) GetAttachment(_ context.Context, id int64) (*db.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attachments[id]
	if !ok {
		return nil, errs.NotFound("attachment %d not found", id)
	}
	return &a, nil
}

func (f *fakeStore) ListAttachmentsByIssue(_ context.Context, issueID int64) ([]db.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Attachment
	for _, id := range sortedKeys(f.attachments) {
		if a := f.attachments[id]; a.IssueID == issueID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteAttachment(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attachments[id]; !ok {
		return errs.NotFound("attachment %d not found", id)
	}
	delete(f.attachments, id)
	return nil
}

// Invitations

func (f *fakeStore) CreateInvitation(_ context.Context, inv *db.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv.ID = f.id()
	f.invitations[inv.ID] = *inv
	return nil
}

func (f *fakeStore) GetInvitationByToken(_ context.Context, token string) (*db.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.Token == token {
			return &inv, nil
		}
	}
	return nil, errs.NotFound("invitation not found")
}

func (f *fakeStore) MarkInvitationAccepted(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return errs.NotFound("invitation not found")
	}
	inv.AcceptedAt = &at
	f.invitations[id] = inv
	return nil
}

// Test collaborators

type published struct {
	projectID int64
	eventType string
	data      any
}

type recordingHub struct {
	mu     sync.Mutex
	events []published
}

func (h *recordingHub) Publish(projectID int64, eventType string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, published{projectID, eventType, data})
}

type sentInvitation struct {
	to, projectName, link string
}

type recordingMailer struct {
	sent []sentInvitation
	err  error
}

func (m *recordingMailer) SendInvitation(_ context.Context, to, projectName, link string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentInvitation{to, projectName, link})
	return nil
}

type stubTokens struct{}

func (stubTokens) Issue(userID int64, _ string) (string, error) {
	return "tok-" + strconv.FormatInt(userID, 10), nil
}

func (stubTokens) Parse(token string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(token, "tok-"), 10, 64)
	if !strings.HasPrefix(token, "tok-") || err != nil {
		return 0, errs.Unauthenticated("bad token")
	}
	return id, nil
}

// env wires services over a fake store with a fixed clock.
type env struct {
	store  *fakeStore
	hub    *recordingHub
	mailer *recordingMailer
	blobs  *files.Disk
	now    time.Time
	svc    *Services
}

func newEnv(t *testing.T) *env {
	t.Helper()
	blobs, err := files.NewDisk(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	e := &env{
		store:  newFakeStore(),
		hub:    &recordingHub{},
		mailer: &recordingMailer{},
		blobs:  blobs,
		now:    time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	e.svc = New(Deps{
		Store:     e.store,
		Blobs:     blobs,
		Hub:       e.hub,
		Mailer:    e.mailer,
		Tokens:    stubTokens{},
		InviteURL: "http://tracker.test/invite",
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return e.now },
	})
	return e
}

func (e *env) user(t *testing.T, name string) *db.User {
	t.Helper()
	u := &db.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *env) project(t *testing.T, owner *db.User) *db.Project {
	t.Helper()
	p, err := e.svc.Projects.Create(context.Background(), "Apollo", "", owner.ID)
	require.NoError(t, err)
	return p
}

func (e *env) issue(t *testing.T, p *db.Project, creator *db.User) *db.Issue {
	t.Helper()
	is, err := e.svc.Issues.Create(context.Background(), IssueRequest{ProjectID: p.ID, Title: ptr("Task")}, creator.ID)
	require.NoError(t, err)
	return is
}

func (e *env) upload(t *testing.T, issueID, userID int64, content string) *db.Attachment {
	t.Helper()
	a, err := e.svc.Attachments.Upload(context.Background(), issueID, userID, "notes.txt", "text/plain", bytes.NewBufferString(content))
	require.NoError(t, err)
	return a
}

func blobExists(e *env, a *db.Attachment) bool {
	f, err := e.blobs.Open(a.FilePath)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func ptr[T any](v T) *T { return &v }
