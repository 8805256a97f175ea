package ptc

import (
	"fmt"

	"github.com/Laisky/errors/v2"
	"go.temporal.io/sdk/client"

	"github.com/laiskytech/converse-gateway/internal/config"
)

// New builds the Dispatcher named by config.PTCBackend: "disabled"
// (default) or "temporal". An unrecognized backend name is an error
// rather than a silent fallback, since cmd/gateway startup is exactly the
// place a misconfigured deployment should fail loudly.
func New() (Dispatcher, error) {
	switch config.PTCBackend {
	case "", "disabled":
		return DisabledDispatcher{}, nil
	case "temporal":
		c, err := client.Dial(client.Options{HostPort: config.TemporalHostPort})
		if err != nil {
			return nil, errors.Wrap(err, "dial temporal frontend")
		}
		return NewTemporalDispatcher(c, config.TemporalTaskQueue, "ptc_dispatch_tool_call"), nil
	default:
		return nil, errors.New(fmt.Sprintf("ptc: unknown PTC_BACKEND %q", config.PTCBackend))
	}
}
