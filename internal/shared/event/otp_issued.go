package event

const OtpIssuedDestination string = "otp_issued"
const OtpIssuedConsumerAudit string = "otp_issued_audit"

type OtpIssuedMessage struct {
	OtpID       int64  `json:"otp_id"`
	Purpose     string `json:"purpose"`
	Method      string `json:"method"`
	Destination string `json:"destination"`
	Provider    string `json:"provider"`
	IssuedAt    int64  `json:"issued_at"`
}
