package tasmota

// StatusCode is the payload of a cmnd/<topic>/STATUS request.
type StatusCode string

// Status request codes understood by the firmware.
const (
	// StatusGeneral requests the generic STATUS reply.
	StatusGeneral StatusCode = ""

	// StatusCapabilities requests STATUS11 (output states).
	StatusCapabilities StatusCode = "11"

	// StatusDetails requests STATUS8 (sensor readings).
	StatusDetails StatusCode = "8"
)

// Command is one outbound MQTT message.
type Command struct {
	Topic   string
	Payload string
}

// CommandEmitter builds device commands under a command prefix.
type CommandEmitter struct {
	prefix string
}

// NewCommandEmitter returns an emitter for the given command prefix ("cmnd").
func NewCommandEmitter(prefix string) CommandEmitter {
	return CommandEmitter{prefix: prefix}
}

// Probe returns the STATUS request for a device topic.
func (e CommandEmitter) Probe(topic string, code StatusCode) Command {
	return Command{Topic: e.topic(topic, "STATUS"), Payload: string(code)}
}

// SetPower returns the relay command for an output capability
// (cmnd/<topic>/POWER, cmnd/<topic>/POWER2, ...).
func (e CommandEmitter) SetPower(topic, capability string, on bool) Command {
	payload := "OFF"
	if on {
		payload = "ON"
	}
	return Command{Topic: e.topic(topic, capability), Payload: payload}
}

// Scan returns a generic STATUS request for a group topic every device
// subscribes to.
func (e CommandEmitter) Scan(group string) Command {
	return e.Probe(group, StatusGeneral)
}

func (e CommandEmitter) topic(deviceTopic, command string) string {
	return e.prefix + "/" + deviceTopic + "/" + command
}
