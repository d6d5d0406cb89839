package domain

// Status is the coarse lifecycle state shown on a container card.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusUnknown Status = "unknown"
)

// DefaultGroup is the raw group used for containers without a compose project.
const DefaultGroup = "default"

// Container represents a container in the system (Docker, K8s, etc.)
type Container struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Image       string   `json:"image,omitempty"`
	Status      Status   `json:"status"`
	State       string   `json:"state,omitempty"` // raw runtime text, e.g. "Up 3 hours"
	Installed   bool     `json:"installed"`
	Port        string   `json:"port,omitempty"`
	Description string   `json:"description,omitempty"`
	Volumes     []string `json:"volumes,omitempty"`
	IPAddress   string   `json:"ip_address,omitempty"`
	PrivatePort int      `json:"private_port,omitempty"`
	Group       string   `json:"group,omitempty"`
}

// StatusFromState maps a runtime state string onto Status.
func StatusFromState(state string) Status {
	switch state {
	case "running", "restarting":
		return StatusRunning
	case "exited", "created", "paused", "dead", "removing":
		return StatusStopped
	default:
		return StatusUnknown
	}
}
