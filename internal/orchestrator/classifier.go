package orchestrator

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"vaultflow/internal/model"
)

// Cause is the classified origin of a failed wallet or chain operation.
type Cause string

const (
	CauseUserRejected       Cause = "user_rejected"
	CauseSimulationFalseNeg Cause = "wallet_simulation_false_negative"
	CauseOnChainRevert      Cause = "on_chain_revert"
	CauseUnclassified       Cause = "unclassified"
)

// Classification is a failure cause plus its user-facing message.
type Classification struct {
	Cause   Cause
	Message string
}

const (
	// displayLimit bounds unclassified raw failure text.
	displayLimit = 200

	// EIP-1193 user rejection code.
	userRejectedCode = 4001

	// Known false-negative preflight signature on certain chains: the
	// provider reports an internal simulation failure that does not
	// reflect the true on-chain outcome.
	falseNegativeCode     = -32603
	falseNegativeFragment = "internal json-rpc error"
)

var rejectionVocabulary = []string{
	"user rejected",
	"user denied",
	"rejected by user",
	"request rejected",
}

// Classify maps a failed operation into one of the fixed causes. It is
// evaluated independently for every write in a session: the approval,
// the deposit, and the withdraw can each fail for different reasons.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Cause: CauseUnclassified, Message: "unknown failure"}
	}

	var revert *model.RevertError
	if errors.As(err, &revert) {
		return Classification{Cause: CauseOnChainRevert, Message: revertMessage(revert.Reason)}
	}

	message := err.Error()
	lower := strings.ToLower(message)

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case userRejectedCode:
			return Classification{Cause: CauseUserRejected, Message: userRejectedMessage}
		case falseNegativeCode:
			if strings.Contains(lower, falseNegativeFragment) {
				return Classification{Cause: CauseSimulationFalseNeg, Message: falseNegativeMessage}
			}
		}
	}

	for _, phrase := range rejectionVocabulary {
		if strings.Contains(lower, phrase) {
			return Classification{Cause: CauseUserRejected, Message: userRejectedMessage}
		}
	}

	if strings.Contains(lower, falseNegativeFragment) {
		return Classification{Cause: CauseSimulationFalseNeg, Message: falseNegativeMessage}
	}

	if strings.Contains(lower, "execution reverted") {
		return Classification{Cause: CauseOnChainRevert, Message: revertMessage(model.ExtractRevertReason(message))}
	}

	return Classification{Cause: CauseUnclassified, Message: truncateForDisplay(message)}
}

const (
	userRejectedMessage = "Transaction was rejected in the wallet. You can resubmit when ready."

	falseNegativeMessage = "The wallet reported a simulation failure that may not reflect the actual on-chain result. " +
		"Verify the transaction on a block explorer before retrying."
)

func revertMessage(reason string) string {
	if reason != "" {
		return "Transaction reverted on-chain: " + reason
	}
	return "Transaction reverted on-chain."
}

func truncateForDisplay(message string) string {
	runes := []rune(message)
	if len(runes) <= displayLimit {
		return message
	}
	return string(runes[:displayLimit]) + "…"
}
