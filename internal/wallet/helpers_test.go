package wallet_test

import (
	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/protocol"
)

func certificateSubject(id protocol.Identity, pub []byte) certificate.UserInfo {
	return certificate.UserInfo{Identity: id, PublicKey: pub, AccountNumber: 1, CreditLimit: 50}
}
