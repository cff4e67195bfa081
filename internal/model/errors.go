package model

import (
	"fmt"
	"strings"
)

// RevertError marks a transaction that was mined but reverted. Reason is
// the short revert string when one could be extracted, otherwise empty.
type RevertError struct {
	TxHash string
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transaction %s reverted: %s", e.TxHash, e.Reason)
	}
	return fmt.Sprintf("transaction %s reverted", e.TxHash)
}

// OracleUnavailableError marks a deposit aborted because the attestation
// service could not be reached. No write was submitted.
type OracleUnavailableError struct {
	Err error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("oracle unavailable: %v", e.Err)
}

func (e *OracleUnavailableError) Unwrap() error {
	return e.Err
}

// ValidationError marks bad amount input. Resolved locally; never
// reaches the chain.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ExtractRevertReason pulls the short reason out of a node error string
// of the form "execution reverted: <reason>".
func ExtractRevertReason(message string) string {
	const marker = "execution reverted"
	idx := strings.Index(message, marker)
	if idx < 0 {
		return ""
	}
	rest := message[idx+len(marker):]
	rest = strings.TrimPrefix(rest, ":")
	rest = strings.TrimSpace(rest)
	if cut := strings.IndexAny(rest, "\"\n"); cut >= 0 {
		rest = rest[:cut]
	}
	return rest
}
