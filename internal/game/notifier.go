package game

// Notifier is the engine's only outbound surface. Broadcast reaches every
// connected agent, NotifyAgent addresses one agent's connection, and
// NotifySpectators fans out to the read-only audience. Implementations must
// tolerate being called for agents that have already disconnected.
type Notifier interface {
	Broadcast(event string, payload any)
	NotifyAgent(agentID int64, event string, payload any)
	NotifySpectators(event string, payload any)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Broadcast(string, any)          {}
func (NopNotifier) NotifyAgent(int64, string, any) {}
func (NopNotifier) NotifySpectators(string, any)   {}
