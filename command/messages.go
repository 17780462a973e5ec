package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-unify/core"
	"github.com/goliatone/go-unify/crm"
)

const (
	TypeCompleteCallback = "unify.command.complete_callback"
	TypeRefresh          = "unify.command.refresh"
	TypeAddContact       = "unify.command.add_contact"
	TypeBatchAddContacts = "unify.command.batch_add_contacts"
)

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderSlug) == "" {
		return fmt.Errorf("command: provider slug is required")
	}
	if strings.TrimSpace(m.Request.LinkedUserID) == "" {
		return fmt.Errorf("command: linked user id is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return fmt.Errorf("command: authorization code is required")
	}
	return nil
}

type RefreshMessage struct {
	ConnectionID string
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("command: connection id is required")
	}
	return nil
}

type AddContactMessage struct {
	Request crm.AddContactRequest
}

func (AddContactMessage) Type() string { return TypeAddContact }

func (m AddContactMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderSlug) == "" {
		return fmt.Errorf("command: provider slug is required")
	}
	if strings.TrimSpace(m.Request.LinkedUserID) == "" {
		return fmt.Errorf("command: linked user id is required")
	}
	return nil
}

type BatchAddContactsMessage struct {
	Requests []crm.AddContactRequest
}

func (BatchAddContactsMessage) Type() string { return TypeBatchAddContacts }

func (m BatchAddContactsMessage) Validate() error {
	if len(m.Requests) == 0 {
		return fmt.Errorf("command: at least one contact request is required")
	}
	for index, req := range m.Requests {
		if strings.TrimSpace(req.ProviderSlug) == "" {
			return fmt.Errorf("command: request %d: provider slug is required", index)
		}
		if strings.TrimSpace(req.LinkedUserID) == "" {
			return fmt.Errorf("command: request %d: linked user id is required", index)
		}
	}
	return nil
}
