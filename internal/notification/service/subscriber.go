package service

import (
	"context"
	"fmt"

	"etatcivil/internal/events"
	"etatcivil/internal/workflow"
)

var statusLabels = map[workflow.Status]string{
	workflow.StatusPending:    "en attente",
	workflow.StatusInProgress: "en cours de traitement",
	workflow.StatusCompleted:  "traitée",
	workflow.StatusRejected:   "rejetée",
}

// Subscriber turns workflow events into citizen notifications.
type Subscriber struct {
	service *Service
}

func NewSubscriber(service *Service) *Subscriber {
	return &Subscriber{service: service}
}

func (s *Subscriber) Name() string {
	return "notifications"
}

func (s *Subscriber) Handle(ctx context.Context, e events.Event) error {
	if e.CitizenID.IsNil() {
		return nil
	}
	content, ok := render(e)
	if !ok {
		return nil
	}
	_, err := s.service.Notify(ctx, e.CitizenID, content)
	return err
}

// render writes the French message for an event. Deletions are not announced.
func render(e events.Event) (string, bool) {
	object := "votre déclaration de naissance"
	if e.RequestType == workflow.RequestTypeCertificate {
		object = "votre demande d'extrait d'acte de naissance"
	}
	subject := "V" + object[1:]

	switch e.Type {
	case events.RequestSubmitted:
		if e.TrackingNumber != "" {
			return fmt.Sprintf("%s a bien été enregistrée. Numéro de suivi : %s.", subject, e.TrackingNumber), true
		}
		return subject + " a bien été enregistrée.", true
	case events.StatusChanged:
		label, ok := statusLabels[e.Status]
		if !ok {
			return "", false
		}
		msg := fmt.Sprintf("%s est désormais %s.", subject, label)
		if e.Comment != "" {
			msg += " Commentaire : " + e.Comment
		}
		return msg, true
	case events.PaymentCompleted:
		return "Votre paiement a été confirmé. " + subject + " va être traitée.", true
	case events.DocumentAttached:
		return "Un nouveau document a été ajouté à " + object + ".", true
	}
	return "", false
}
