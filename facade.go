package crosspost

import (
	"fmt"

	"github.com/goliatone/go-crosspost/adapters/gocommand"
	crosspostcommand "github.com/goliatone/go-crosspost/command"
	"github.com/goliatone/go-crosspost/core"
	"github.com/goliatone/go-crosspost/inbound"
	crosspostquery "github.com/goliatone/go-crosspost/query"
)

// CommandQueryService is the surface the facade adapts to go-command.
type CommandQueryService interface {
	crosspostcommand.MutatingService
	crosspostcommand.ExpiredTokenService
	crosspostquery.LinkReader
	crosspostquery.DirectiveResolver
}

type Commands struct {
	BeginLink    *crosspostcommand.BeginLinkCommand
	CompleteLink *crosspostcommand.CompleteLinkCommand
	Unlink       *crosspostcommand.UnlinkCommand
	ProcessText  *crosspostcommand.ProcessTextCommand
	PurgeExpired *crosspostcommand.PurgeExpiredCommand
}

type Queries struct {
	GetLink          *crosspostquery.GetLinkQuery
	ResolveDirective *crosspostquery.ResolveDirectiveQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("crosspost: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			BeginLink:    crosspostcommand.NewBeginLinkCommand(service),
			CompleteLink: crosspostcommand.NewCompleteLinkCommand(service),
			Unlink:       crosspostcommand.NewUnlinkCommand(service),
			ProcessText:  crosspostcommand.NewProcessTextCommand(service),
			PurgeExpired: crosspostcommand.NewPurgeExpiredCommand(service),
		},
		queries: Queries{
			GetLink:          crosspostquery.NewGetLinkQuery(service),
			ResolveDirective: crosspostquery.NewResolveDirectiveQuery(service),
		},
	}, nil
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

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Register subscribes every command and query on the go-command dispatcher
// through registrar. Release them with registrar.Close.
func (f *Facade) Register(registrar *gocommand.Registrar) error {
	if f == nil {
		return fmt.Errorf("crosspost: facade is nil")
	}
	if registrar == nil {
		return fmt.Errorf("crosspost: registrar is required")
	}
	steps := []func() error{
		func() error {
			return gocommand.RegisterCommand[crosspostcommand.BeginLinkMessage](registrar, f.commands.BeginLink)
		},
		func() error {
			return gocommand.RegisterCommand[crosspostcommand.CompleteLinkMessage](registrar, f.commands.CompleteLink)
		},
		func() error {
			return gocommand.RegisterCommand[crosspostcommand.UnlinkMessage](registrar, f.commands.Unlink)
		},
		func() error {
			return gocommand.RegisterCommand[crosspostcommand.ProcessTextMessage](registrar, f.commands.ProcessText)
		},
		func() error {
			return gocommand.RegisterCommand[crosspostcommand.PurgeExpiredMessage](registrar, f.commands.PurgeExpired)
		},
		func() error {
			return gocommand.RegisterQuery[crosspostquery.GetLinkMessage, core.UserServiceLink](registrar, f.queries.GetLink)
		},
		func() error {
			return gocommand.RegisterQuery[crosspostquery.ResolveDirectiveMessage, []string](registrar, f.queries.ResolveDirective)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			registrar.Close()
			return err
		}
	}
	return nil
}

// CallbackHandler serves the OAuth redirect that finishes account linking.
func (f *Facade) CallbackHandler(opts ...inbound.CallbackOption) (*inbound.CallbackHandler, error) {
	if f == nil || f.service == nil {
		return nil, fmt.Errorf("crosspost: facade is not configured")
	}
	return inbound.NewCallbackHandler(f.service, opts...)
}
