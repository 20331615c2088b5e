package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etatcivil/internal/events"
	"etatcivil/internal/notification/models"
	"etatcivil/internal/notification/store"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/requestcontext"
)

func TestMarkReadIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewInMemoryNotifications())
	owner := id.UserID(uuid.New())

	n, err := svc.Notify(ctx, owner, "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnread, n.Status)

	_, err = svc.MarkRead(ctx, id.UserID(uuid.New()), n.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.MarkRead(ctx, owner, id.NotificationID(uuid.New()))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	read, err := svc.MarkRead(ctx, owner, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, read.Status)
}

func TestListIsNewestFirst(t *testing.T) {
	svc := New(store.NewInMemoryNotifications())
	owner := id.UserID(uuid.New())
	base := time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)

	_, err := svc.Notify(requestcontext.WithTime(context.Background(), base), owner, "premier")
	require.NoError(t, err)
	_, err = svc.Notify(requestcontext.WithTime(context.Background(), base.Add(time.Hour)), owner, "second")
	require.NoError(t, err)
	_, err = svc.Notify(context.Background(), id.UserID(uuid.New()), "autre")
	require.NoError(t, err)

	list, err := svc.List(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Content)
}

func TestSubscriberWritesFrenchMessages(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryNotifications()
	sub := NewSubscriber(New(st))
	citizenID := id.UserID(uuid.New())

	tests := []struct {
		name  string
		event events.Event
		want  string
	}{
		{
			name:  "certificate submitted",
			event: events.Event{Type: events.RequestSubmitted, RequestType: workflow.RequestTypeCertificate, TrackingNumber: "AN-20250410-ABCDEFGH"},
			want:  "Votre demande d'extrait d'acte de naissance a bien été enregistrée. Numéro de suivi : AN-20250410-ABCDEFGH.",
		},
		{
			name:  "declaration rejected with comment",
			event: events.Event{Type: events.StatusChanged, RequestType: workflow.RequestTypeDeclaration, Status: workflow.StatusRejected, Comment: "pièce manquante"},
			want:  "Votre déclaration de naissance est désormais rejetée. Commentaire : pièce manquante",
		},
		{
			name:  "payment completed",
			event: events.Event{Type: events.PaymentCompleted, RequestType: workflow.RequestTypeDeclaration},
			want:  "Votre paiement a été confirmé. Votre déclaration de naissance va être traitée.",
		},
		{
			name:  "document attached",
			event: events.Event{Type: events.DocumentAttached, RequestType: workflow.RequestTypeCertificate},
			want:  "Un nouveau document a été ajouté à votre demande d'extrait d'acte de naissance.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.CitizenID = citizenID
			got, ok := render(tt.event)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			require.NoError(t, sub.Handle(ctx, tt.event))
		})
	}

	require.NoError(t, sub.Handle(ctx, events.Event{Type: events.StatusChanged, CitizenID: citizenID, Status: workflow.StatusDeleted}))
	require.NoError(t, sub.Handle(ctx, events.Event{Type: events.RequestSubmitted}))

	list, err := st.ListByCitizen(ctx, citizenID)
	require.NoError(t, err)
	assert.Len(t, list, len(tests))
}
