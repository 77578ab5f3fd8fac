package notification

import "context"

// Dispatcher delivers one push to a set of device tokens.
// Implemented by the Expo and Firebase clients in the infrastructure layer.
//
// Dispatch never returns an error: provider failures are reported as failed
// tokens. An empty token list must not reach the network.
type Dispatcher interface {
	Dispatch(ctx context.Context, tokens []string, msg PushMessage) DispatchResult
}
