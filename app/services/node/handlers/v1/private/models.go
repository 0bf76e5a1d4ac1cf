package private

import "github.com/leakwatch/blockchain/foundation/blockchain/database"

type newTransaction struct {
	Sender       string  `json:"sender" validate:"required,max=128"`
	Recipient    string  `json:"recipient" validate:"required,max=128"`
	RewardAmount float64 `json:"reward_amount" validate:"gt=0"`
	Reason       string  `json:"reason" validate:"max=256"`
}

func (nt newTransaction) toRewardTransaction() database.RewardTransaction {
	return database.RewardTransaction{
		Sender:       nt.Sender,
		Recipient:    nt.Recipient,
		RewardAmount: nt.RewardAmount,
		Reason:       nt.Reason,
	}
}

type retrainResponse struct {
	Message  string  `json:"message"`
	Samples  int     `json:"samples"`
	Accuracy float64 `json:"accuracy"`
}
