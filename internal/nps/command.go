package nps

import (
	"fmt"

	"github.com/larsks/npsctl/internal/relay"
)

// Terminator ends every line sent to the device
const Terminator = "\r\n"

const statusCommand = "/S"

// BuildCommand returns the command line that applies action to relay n,
// e.g. "/On 5\r\n".
func BuildCommand(action relay.Action, n int) (string, error) {
	verb := action.Verb()
	if verb == "" {
		return "", fmt.Errorf("%w: %s", ErrNotPerRelay, action)
	}
	if err := relay.Validate(n); err != nil {
		return "", err
	}
	return fmt.Sprintf("/%s %d%s", verb, n, Terminator), nil
}

// StatusQuery returns the command line that asks for the relay table
func StatusQuery() string {
	return statusCommand + Terminator
}
