package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lumen-backend/internal/events"
	"lumen-backend/internal/mailer"
	"lumen-backend/internal/models"
	"lumen-backend/internal/repositories"
)

type users map[uuid.UUID]*models.User

func (u users) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, repositories.ErrNotFound
}

type readers map[uuid.UUID]string

func (r readers) FindByID(_ context.Context, id uuid.UUID) (*models.ReaderProfile, error) {
	if name, ok := r[id]; ok {
		return &models.ReaderProfile{UserID: id, DisplayName: name}, nil
	}
	return nil, repositories.ErrNotFound
}

type prefs struct {
	muted map[uuid.UUID]bool
	err   error
}

func (p prefs) WantsEmail(_ context.Context, id uuid.UUID, _ string) (bool, error) {
	return !p.muted[id], p.err
}

type outbox struct{ sent []mailer.Message }

func (o *outbox) Send(_ context.Context, m mailer.Message) error {
	o.sent = append(o.sent, m)
	return nil
}

type fixture struct {
	client, reader uuid.UUID
	box            *outbox
	emailer        *Emailer
	prefs          *prefs
}

func newFixture() *fixture {
	f := &fixture{client: uuid.New(), reader: uuid.New(), box: &outbox{}, prefs: &prefs{muted: map[uuid.UUID]bool{}}}
	u := users{
		f.client: {ID: f.client, Email: "ada@example.com", DisplayName: "Ada", Status: models.UserActive},
		f.reader: {ID: f.reader, Email: "luna@example.com", DisplayName: "Luna", Status: models.UserActive},
	}
	f.emailer = NewEmailer(u, readers{f.reader: "Luna"}, f.prefs, mailer.NewRenderer(), f.box, zap.NewNop())
	return f
}

func (f *fixture) sessionEvent(t *testing.T, eventType string, actor uuid.UUID) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(eventType, events.SessionPayload{
		SessionID:  uuid.NewString(),
		ClientID:   f.client.String(),
		ReaderID:   f.reader.String(),
		Type:       "video",
		StartsAt:   time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC),
		Minutes:    30,
		PriceCents: 4500,
		ActorID:    actor.String(),
	})
	require.NoError(t, err)
	return env
}

func TestHandle_ConfirmedGoesToClient(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.emailer.Handle(context.Background(), f.sessionEvent(t, events.SessionConfirmed, f.reader)))

	require.Len(t, f.box.sent, 1)
	msg := f.box.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Your reading with Luna is confirmed", msg.Subject)
	assert.Equal(t, mailer.TemplateSessionConfirmed, msg.Tag)
	assert.Contains(t, msg.HTML, "$45.00")
}

func TestHandle_BookedGoesToReader(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.emailer.Handle(context.Background(), f.sessionEvent(t, events.SessionBooked, f.client)))

	require.Len(t, f.box.sent, 1)
	assert.Equal(t, "luna@example.com", f.box.sent[0].To)
	assert.Contains(t, f.box.sent[0].HTML, "Ada requested a 30 minute video reading")
}

func TestHandle_CancelNotifiesTheOtherParty(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.emailer.Handle(ctx, f.sessionEvent(t, events.SessionCancelled, f.client)))
	require.NoError(t, f.emailer.Handle(ctx, f.sessionEvent(t, events.SessionCancelled, f.reader)))

	require.Len(t, f.box.sent, 2)
	assert.Equal(t, "luna@example.com", f.box.sent[0].To)
	assert.Equal(t, "ada@example.com", f.box.sent[1].To)
}

func TestHandle_RespectsEmailPreference(t *testing.T) {
	f := newFixture()
	f.prefs.muted[f.client] = true

	require.NoError(t, f.emailer.Handle(context.Background(), f.sessionEvent(t, events.SessionCompleted, f.reader)))
	assert.Empty(t, f.box.sent)
}

func TestHandle_PreferenceErrorIsRetried(t *testing.T) {
	f := newFixture()
	f.prefs.err = errors.New("db down")

	err := f.emailer.Handle(context.Background(), f.sessionEvent(t, events.SessionCompleted, f.reader))
	assert.Error(t, err)
}

func TestHandle_OrderAndTicket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	order, err := events.NewEnvelope(events.OrderCompleted, events.OrderPayload{
		OrderID: uuid.NewString(), UserID: f.client.String(), TotalCents: 2099, Titles: []string{"Moon Guide"},
	})
	require.NoError(t, err)
	ticket, err := events.NewEnvelope(events.TicketReplied, events.TicketPayload{
		TicketID: uuid.NewString(), UserID: f.client.String(), Subject: "Refund", Body: "Done",
	})
	require.NoError(t, err)

	require.NoError(t, f.emailer.Handle(ctx, order))
	require.NoError(t, f.emailer.Handle(ctx, ticket))

	require.Len(t, f.box.sent, 2)
	assert.Equal(t, "Your order receipt ($20.99)", f.box.sent[0].Subject)
	assert.Equal(t, "Re: Refund", f.box.sent[1].Subject)
}

func TestHandle_IgnoresUnknownAndMissingUsers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	gift, err := events.NewEnvelope(events.GiftSent, events.GiftPayload{ReaderID: f.reader.String()})
	require.NoError(t, err)
	require.NoError(t, f.emailer.Handle(ctx, gift))

	orphan, err := events.NewEnvelope(events.OrderCompleted, events.OrderPayload{UserID: uuid.NewString()})
	require.NoError(t, err)
	require.NoError(t, f.emailer.Handle(ctx, orphan))

	assert.Empty(t, f.box.sent)
}
