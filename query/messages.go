package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-unify/crm"
)

const (
	TypeGetContact   = "unify.query.get_contact"
	TypeListContacts = "unify.query.list_contacts"
)

type GetContactMessage struct {
	ContactID     string
	IncludeRemote bool
}

func (GetContactMessage) Type() string { return TypeGetContact }

func (m GetContactMessage) Validate() error {
	if strings.TrimSpace(m.ContactID) == "" {
		return fmt.Errorf("query: contact id is required")
	}
	return nil
}

type ListContactsMessage struct {
	Request crm.ListContactsRequest
}

func (ListContactsMessage) Type() string { return TypeListContacts }

func (m ListContactsMessage) Validate() error {
	if m.Request.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	if m.Request.Offset < 0 {
		return fmt.Errorf("query: offset must be >= 0")
	}
	return nil
}
