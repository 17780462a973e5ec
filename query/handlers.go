package query

import (
	"context"

	"github.com/goliatone/go-unify/crm"
)

type ContactReader interface {
	GetContact(ctx context.Context, id string, includeRemote bool) (*crm.ContactResult, error)
	GetContacts(ctx context.Context, req crm.ListContactsRequest) ([]*crm.ContactResult, error)
}

type GetContactQuery struct {
	reader ContactReader
}

func NewGetContactQuery(reader ContactReader) *GetContactQuery {
	return &GetContactQuery{reader: reader}
}

func (q *GetContactQuery) Query(ctx context.Context, msg GetContactMessage) (*crm.ContactResult, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: contact reader is required")
	}
	return q.reader.GetContact(ctx, msg.ContactID, msg.IncludeRemote)
}

type ListContactsQuery struct {
	reader ContactReader
}

func NewListContactsQuery(reader ContactReader) *ListContactsQuery {
	return &ListContactsQuery{reader: reader}
}

func (q *ListContactsQuery) Query(ctx context.Context, msg ListContactsMessage) ([]*crm.ContactResult, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: contact reader is required")
	}
	return q.reader.GetContacts(ctx, msg.Request)
}
