package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-unify/core"
	"github.com/goliatone/go-unify/crm"
)

type ConnectionMutator interface {
	HandleCallback(ctx context.Context, req core.CallbackRequest) (core.Connection, error)
	Refresh(ctx context.Context, connectionID string) error
	GetConnection(ctx context.Context, connectionID string) (core.Connection, error)
}

type ContactMutator interface {
	AddContact(ctx context.Context, req crm.AddContactRequest) (*crm.ContactResult, error)
	BatchAddContacts(ctx context.Context, reqs []crm.AddContactRequest) []crm.BatchItemResult
}

type CompleteCallbackCommand struct {
	service ConnectionMutator
}

func NewCompleteCallbackCommand(service ConnectionMutator) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.HandleCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCommand struct {
	service ConnectionMutator
}

func NewRefreshCommand(service ConnectionMutator) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	if err := c.service.Refresh(ctx, msg.ConnectionID); err != nil {
		return err
	}
	refreshed, err := c.service.GetConnection(ctx, msg.ConnectionID)
	if err != nil {
		return err
	}
	storeResult(ctx, refreshed)
	return nil
}

type AddContactCommand struct {
	service ContactMutator
}

func NewAddContactCommand(service ContactMutator) *AddContactCommand {
	return &AddContactCommand{service: service}
}

func (c *AddContactCommand) Execute(ctx context.Context, msg AddContactMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	out, err := c.service.AddContact(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type BatchAddContactsCommand struct {
	service ContactMutator
}

func NewBatchAddContactsCommand(service ContactMutator) *BatchAddContactsCommand {
	return &BatchAddContactsCommand{service: service}
}

func (c *BatchAddContactsCommand) Execute(ctx context.Context, msg BatchAddContactsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: contact service is required")
	}
	storeResult(ctx, c.service.BatchAddContacts(ctx, msg.Requests))
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
