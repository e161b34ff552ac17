package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
)

// contactDetails is what an inbound channel knows about a person.
type contactDetails struct {
	Phone      string
	Name       string
	Email      string
	Department models.Department
	Source     string
	Tags       []string
}

// upsertContact finds the contact by normalized phone and fills the blanks,
// or creates it. It reports whether the contact was created.
func upsertContact(ctx context.Context, p persistence.Persistence, details contactDetails) (*models.Contact, bool, error) {
	repo := p.ContactRepository()

	contact, err := repo.GetByPhone(ctx, details.Phone)

	switch {
	case err == nil:
		if contact.Name == "" {
			contact.Name = strings.TrimSpace(details.Name)
		}

		if contact.Email == "" {
			contact.Email = strings.TrimSpace(details.Email)
		}

		if contact.Department == "" {
			contact.Department = details.Department
		}

		contact.AddTags(details.Tags...)

		err = repo.Save(ctx, contact)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update contact: %w", err)
		}

		return contact, false, nil
	case persistence.IsNotFound(err):
		contact = &models.Contact{
			Name:       strings.TrimSpace(details.Name),
			Phone:      details.Phone,
			Email:      strings.TrimSpace(details.Email),
			Department: details.Department,
			Source:     details.Source,
			Tags:       []string{},
		}
		contact.AddTags(details.Tags...)

		err = repo.Save(ctx, contact)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create contact: %w", err)
		}

		return contact, true, nil
	default:
		return nil, false, fmt.Errorf("failed to look up contact: %w", err)
	}
}

// openConversation returns the open conversation of contact in department,
// creating one when there is none.
func openConversation(
	ctx context.Context,
	p persistence.Persistence,
	contact *models.Contact,
	department models.Department,
) (*models.Conversation, error) {
	repo := p.ConversationRepository()

	conversation, err := repo.OpenByPhone(ctx, contact.Phone, department)
	if err == nil {
		return conversation, nil
	}

	if !persistence.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	conversation = &models.Conversation{
		ContactID:  contact.ID,
		Phone:      contact.Phone,
		Department: department,
		Status:     models.ConversationStatusOpen,
	}

	err = repo.Save(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conversation, nil
}
