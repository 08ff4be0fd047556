package models

import "time"

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit-card"
	PaymentPayPal     PaymentMethod = "paypal"
	PaymentCrypto     PaymentMethod = "crypto"
	PaymentOther      PaymentMethod = "other"
)

type Donation struct {
	ID            string        `json:"id" bson:"-"`
	Name          string        `json:"name" bson:"name"`
	Email         string        `json:"email" bson:"email"`
	Amount        float64       `json:"amount" bson:"amount"`
	PaymentMethod PaymentMethod `json:"paymentMethod" bson:"paymentMethod"`
	CreatedAt     time.Time     `json:"createdAt" bson:"createdAt"`
}
