package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type okMessage struct{}

func (okMessage) Type() string { return "crosspost.test.ok" }

type untypedMessage struct{}

func (untypedMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "crosspost.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type echoMessage struct {
	Text string
}

func (echoMessage) Type() string { return "crosspost.test.echo" }

type lookupMessage struct {
	Key string
}

func (lookupMessage) Type() string { return "crosspost.test.lookup" }

type queuedMessage struct{}

func (queuedMessage) Type() string { return "crosspost.test.queued" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(untypedMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistrar_CommandWithResult(t *testing.T) {
	registrar := NewRegistrar(command.NewRegistry())
	defer registrar.Close()

	cmd := command.CommandFunc[echoMessage](func(ctx context.Context, msg echoMessage) error {
		if collector := command.ResultFromContext[string](ctx); collector != nil {
			collector.Store("echo:" + msg.Text)
		}
		return nil
	})
	if err := RegisterCommand(registrar, cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := registrar.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	out, err := DispatchWithResult[echoMessage, string](context.Background(), echoMessage{Text: "hi"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out != "echo:hi" {
		t.Fatalf("unexpected result %q", out)
	}
}

func TestRegistrar_Query(t *testing.T) {
	registrar := NewRegistrar(nil)
	defer registrar.Close()

	qry := command.QueryFunc[lookupMessage, int](func(_ context.Context, msg lookupMessage) (int, error) {
		return len(msg.Key), nil
	})
	if err := RegisterQuery(registrar, qry); err != nil {
		t.Fatalf("register query: %v", err)
	}

	got, err := Query[lookupMessage, int](context.Background(), lookupMessage{Key: "abcd"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestDispatch_RejectsInvalidMessage(t *testing.T) {
	if err := Dispatch(context.Background(), failingMessage{}); err == nil {
		t.Fatalf("expected validation error before dispatch")
	}
}

func TestRegistrar_MirrorToQueue(t *testing.T) {
	registrar := NewRegistrar(command.NewRegistry())
	defer registrar.Close()
	queueRegistry := jobqueuecommand.NewRegistry()

	if err := registrar.MirrorToQueue("queue", queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	cmd := command.CommandFunc[queuedMessage](func(context.Context, queuedMessage) error { return nil })
	if err := RegisterCommand(registrar, cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := registrar.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if _, ok := queueRegistry.Get("crosspost.test.queued"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
	if err := registrar.MirrorToQueue("other", nil); err == nil {
		t.Fatalf("expected missing queue registry error")
	}
}

func TestRegistrar_NilGuards(t *testing.T) {
	var registrar *Registrar
	if err := registrar.Initialize(); err == nil {
		t.Fatalf("expected nil registrar error")
	}
	if err := RegisterCommand[okMessage](registrar, nil); err == nil {
		t.Fatalf("expected nil registrar error")
	}
	registrar.Close()
}
