package protocol

// Opcode names one protocol operation. Values follow the legacy socket
// protocol numbering so logs stay comparable.
type Opcode int32

const (
	OpEnd            Opcode = -1
	OpRegisterUser   Opcode = 11
	OpRegisterVendor Opcode = 111
	OpGetIdentity    Opcode = 1111
	OpSendPayment    Opcode = 11111
	OpSendCommit     Opcode = 111111
	OpRedeem         Opcode = 1111111
)

func (o Opcode) String() string {
	switch o {
	case OpEnd:
		return "END"
	case OpRegisterUser:
		return "REGISTER_USER"
	case OpRegisterVendor:
		return "REGISTER_VENDOR"
	case OpGetIdentity:
		return "GET_IDENTITY"
	case OpSendPayment:
		return "SEND_PAYMENT"
	case OpSendCommit:
		return "SEND_COMMIT"
	case OpRedeem:
		return "REDEEM"
	default:
		return "UNKNOWN"
	}
}

// Status is the outcome reported for every opcode.
type Status string

const (
	StatusOK       Status = "OK"
	StatusRejected Status = "REJECTED"
	StatusFraud    Status = "FRAUD"
)

// StatusFor classifies an operation error.
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case IsFraud(err):
		return StatusFraud
	default:
		return StatusRejected
	}
}
