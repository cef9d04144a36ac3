package subscribers

import (
	"context"

	"github.com/kc-vaultik/shapex-studio/internal/protocol"
)

type Subscriber interface {
	Name() string
	Handle(context.Context, protocol.Event) error
}
