package health

import (
	"github.com/c360/canvaskit/channel"
)

// ChannelStatus maps a channel connection state to a health status.
// Connected is healthy; connecting, reconnecting, and parked
// disconnection are degraded; the terminal error state is unhealthy.
func ChannelStatus(component string, state channel.State) Status {
	switch state {
	case channel.StateConnected:
		return NewHealthy(component, "channel connected")
	case channel.StateConnecting:
		return NewDegraded(component, "channel connecting")
	case channel.StateReconnecting:
		return NewDegraded(component, "channel reconnecting")
	case channel.StateDisconnected:
		return NewDegraded(component, "channel disconnected")
	case channel.StateErrored:
		return NewUnhealthy(component, "channel reconnect attempts exhausted")
	default:
		return NewUnhealthy(component, "channel in unknown state "+state.String())
	}
}

// BindChannel returns a state callback that publishes channel state
// transitions into the monitor under the given component name. Pass it
// to channel.WithStateCallback.
func BindChannel(m *Monitor, component string) func(channel.State) {
	return func(state channel.State) {
		m.Update(component, ChannelStatus(component, state))
	}
}
