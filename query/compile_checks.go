package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-unify/crm"
)

var (
	_ gocmd.Querier[GetContactMessage, *crm.ContactResult]     = (*GetContactQuery)(nil)
	_ gocmd.Querier[ListContactsMessage, []*crm.ContactResult] = (*ListContactsQuery)(nil)
)
