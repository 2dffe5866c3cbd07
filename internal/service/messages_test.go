package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
	"github.com/kidandcat/tracker/internal/ws"
)

func TestSendMessage(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "ana")
	p := e.project(t, owner)
	ctx := context.Background()

	m, err := e.svc.Messages.Send(ctx, owner.ID, p.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Content)
	assert.True(t, m.CreatedAt.Equal(e.now))
	assert.Equal(t, owner.ID, m.SenderID)

	require.Len(t, e.hub.events, 1)
	assert.Equal(t, p.ID, e.hub.events[0].projectID)
	assert.Equal(t, ws.EventMessageNew, e.hub.events[0].eventType)

	_, err = e.svc.Messages.Send(ctx, 999, p.ID, "hi")
	assert.True(t, errs.Is(err, errs.KindNotFound))
	_, err = e.svc.Messages.Send(ctx, owner.ID, 999, "hi")
	assert.True(t, errs.Is(err, errs.KindNotFound))
	_, err = e.svc.Messages.Send(ctx, owner.ID, p.ID, "  ")
	assert.True(t, errs.Is(err, errs.KindInvalidArgument))
}

func TestSendMessageWithoutChat(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "ana")
	p := e.project(t, owner)
	for id, c := range e.store.chats {
		if c.ProjectID == p.ID {
			delete(e.store.chats, id)
		}
	}

	_, err := e.svc.Messages.Send(context.Background(), owner.ID, p.ID, "hello")
	require.True(t, errs.Is(err, errs.KindNotFound))
	assert.Contains(t, err.Error(), "chat not found for project")
}

func TestListMessagesOrderedByCreation(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "ana")
	p := e.project(t, owner)
	ctx := context.Background()

	base := e.now
	for _, step := range []struct {
		content string
		at      time.Time
	}{
		{"t1", base},
		{"t2", base.Add(2 * time.Minute)},
		{"t3", base.Add(time.Minute)},
	} {
		e.now = step.at
		_, err := e.svc.Messages.Send(ctx, owner.ID, p.ID, step.content)
		require.NoError(t, err)
	}

	msgs, err := e.svc.Messages.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"t1", "t3", "t2"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})

	_, err = e.svc.Messages.ListByProject(ctx, 999)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestOnlySenderEditsMessage(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "ana")
	other := e.user(t, "bob")
	p := e.project(t, owner)
	ctx := context.Background()

	m, err := e.svc.Messages.Send(ctx, owner.ID, p.ID, "original")
	require.NoError(t, err)

	_, err = e.svc.Messages.Update(ctx, m.ID, other.ID, "hijacked")
	assert.True(t, errs.Is(err, errs.KindPermissionDenied))
	assert.True(t, errs.Is(e.svc.Messages.Delete(ctx, m.ID, other.ID), errs.KindPermissionDenied))

	stored, err := e.store.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", stored.Content)

	e.now = e.now.Add(time.Hour)
	updated, err := e.svc.Messages.Update(ctx, m.ID, owner.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.True(t, updated.CreatedAt.Equal(m.CreatedAt))

	require.NoError(t, e.svc.Messages.Delete(ctx, m.ID, owner.ID))
	_, err = e.store.GetMessage(ctx, m.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	assert.True(t, errs.Is(e.svc.Messages.Delete(ctx, m.ID, owner.ID), errs.KindNotFound))
	_, err = e.svc.Messages.Update(ctx, m.ID, owner.ID, "x")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	var types []string
	for _, ev := range e.hub.events {
		assert.Equal(t, p.ID, ev.projectID)
		types = append(types, ev.eventType)
	}
	assert.Equal(t, []string{ws.EventMessageNew, ws.EventMessageUpdated, ws.EventMessageDeleted}, types)
}

func TestMessageRoundTripKeepsSender(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "ana")
	p := e.project(t, owner)

	m, err := e.svc.Messages.Send(context.Background(), owner.ID, p.ID, "x")
	require.NoError(t, err)
	require.NotNil(t, m.Sender)
	assert.Equal(t, "ana", m.Sender.Name)

	var stored db.Message = e.store.messages[m.ID]
	assert.Nil(t, stored.Sender)
}
