package event

const DeviceTrustedDestination string = "device_trusted"
const DeviceTrustedConsumerNotification string = "device_trusted_notification"

type DeviceTrustedMessage struct {
	OwnerID   int64  `json:"owner_id"`
	Email     string `json:"email"`
	DeviceID  string `json:"device_id"`
	Label     string `json:"label"`
	TrustedAt int64  `json:"trusted_at"`
}
