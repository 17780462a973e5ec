package unify

import (
	"fmt"

	gocmdadapter "github.com/goliatone/go-unify/adapters/gocommand"
	unifycommand "github.com/goliatone/go-unify/command"
	unifyquery "github.com/goliatone/go-unify/query"
)

// ConnectionCommandService is the connection-side surface the facade wires
// commands against.
type ConnectionCommandService interface {
	unifycommand.ConnectionMutator
}

// ContactCommandService combines the contact mutations and reads the facade
// exposes.

type ContactCommandService interface {
	unifycommand.ContactMutator
	unifyquery.ContactReader
}

type Commands struct {
	CompleteCallback *unifycommand.CompleteCallbackCommand
	Refresh          *unifycommand.RefreshCommand
	AddContact       *unifycommand.AddContactCommand
	BatchAddContacts *unifycommand.BatchAddContactsCommand
}

type Queries struct {
	GetContact   *unifyquery.GetContactQuery
	ListContacts *unifyquery.ListContactsQuery
}

type Facade struct {
	connections ConnectionCommandService
	contacts    ContactCommandService
	commands    Commands
	queries     Queries
}

func NewFacade(connections ConnectionCommandService, contacts ContactCommandService) (*Facade, error) {
	if connections == nil {
		return nil, fmt.Errorf("unify: connection service is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("unify: contact service is required")
	}

	facade := &Facade{
		connections: connections,
		contacts:    contacts,
	}
	facade.commands = Commands{
		CompleteCallback: unifycommand.NewCompleteCallbackCommand(connections),
		Refresh:          unifycommand.NewRefreshCommand(connections),
		AddContact:       unifycommand.NewAddContactCommand(contacts),
		BatchAddContacts: unifycommand.NewBatchAddContactsCommand(contacts),
	}
	facade.queries = Queries{
		GetContact:   unifyquery.NewGetContactQuery(contacts),
		ListContacts: unifyquery.NewListContactsQuery(contacts),
	}
	return facade, nil
}

// RegisterHandlers wires every facade command and query into the shared
// dispatcher and the command registry, so hosts can drive the module through
// message dispatch. The returned subscriptions detach the handlers again.
func (f *Facade) RegisterHandlers(adapter *gocmdadapter.RegistryAdapter) ([]gocmdadapter.Subscription, error) {
	if f == nil {
		return nil, fmt.Errorf("unify: facade is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("unify: command registry adapter is required")
	}

	var subscriptions []gocmdadapter.Subscription
	keep := func(sub gocmdadapter.Subscription, err error) error {
		if err != nil {
			for _, existing := range subscriptions {
				if existing != nil {
					existing.Unsubscribe()
				}
			}
			return err
		}
		subscriptions = append(subscriptions, sub)
		return nil
	}

	if err := keep(gocmdadapter.RegisterAndSubscribe(adapter, f.commands.CompleteCallback)); err != nil {
		return nil, err
	}
	if err := keep(gocmdadapter.RegisterAndSubscribe(adapter, f.commands.Refresh)); err != nil {
		return nil, err
	}
	if err := keep(gocmdadapter.RegisterAndSubscribe(adapter, f.commands.AddContact)); err != nil {
		return nil, err
	}
	if err := keep(gocmdadapter.RegisterAndSubscribe(adapter, f.commands.BatchAddContacts)); err != nil {
		return nil, err
	}
	if err := keep(gocmdadapter.RegisterAndSubscribeQuery(adapter, f.queries.GetContact)); err != nil {
		return nil, err
	}
	if err := keep(gocmdadapter.RegisterAndSubscribeQuery(adapter, f.queries.ListContacts)); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Connections() ConnectionCommandService {
	if f == nil {
		return nil
	}
	return f.connections
}

func (f *Facade) Contacts() ContactCommandService {
	if f == nil {
		return nil
	}
	return f.contacts
}
