package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[RefreshMessage]          = (*RefreshCommand)(nil)
	_ gocmd.Commander[AddContactMessage]       = (*AddContactCommand)(nil)
	_ gocmd.Commander[BatchAddContactsMessage] = (*BatchAddContactsCommand)(nil)
)
