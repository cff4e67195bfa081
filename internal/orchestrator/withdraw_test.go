package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"vaultflow/internal/model"
)

func newTestWithdraw(vaultFake *fakeVault, recorder *recorderFake) *WithdrawOrchestrator {
	flow := NewWithdrawOrchestrator(vaultFake, recorder, testDepositor, nil)
	flow.postCheckDelay = 0
	return flow
}

func TestWithdrawRejectsAmountAboveDepositedValue(t *testing.T) {
	vaultFake := newFakeVault()
	// 1_000_000 shares at unit price: the deposited value is one asset.
	flow := newTestWithdraw(vaultFake, &recorderFake{})

	_, err := flow.ConfirmWithdraw(context.Background(), "2")
	var validation *model.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if indexOf(vaultFake.callSequence(), "submit_withdraw") != -1 {
		t.Fatalf("withdraw submitted despite failed validation")
	}
}

func TestWithdrawValidatesAgainstShareValueNotWalletBalance(t *testing.T) {
	vaultFake := newFakeVault()
	// Appreciated vault: 1_000_000 shares back 1_500_000 assets.
	vaultFake.position.TotalAssets = big.NewInt(1_500_000)
	flow := newTestWithdraw(vaultFake, &recorderFake{})

	if _, err := flow.ConfirmWithdraw(context.Background(), "1.25"); err != nil {
		t.Fatalf("withdraw within share value should pass: %v", err)
	}
}

func TestWithdrawSubmitsAndConfirms(t *testing.T) {
	vaultFake := newFakeVault()
	recorder := &recorderFake{}
	flow := newTestWithdraw(vaultFake, recorder)

	if _, err := flow.ConfirmWithdraw(context.Background(), "0.5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := vaultFake.callSequence()
	withdrawIdx := indexOf(calls, "submit_withdraw")
	confirmIdx := indexOf(calls, "confirm:0xwithdraw")
	if withdrawIdx == -1 || confirmIdx == -1 || withdrawIdx > confirmIdx {
		t.Fatalf("unexpected call order: %v", calls)
	}
	if flow.State() != WithdrawInput {
		t.Fatalf("flow not reset: %s", flow.State())
	}

	if len(recorder.records) != 1 {
		t.Fatalf("expected one history record, got %d", len(recorder.records))
	}
	if recorder.records[0].Kind != string(model.AttemptWithdraw) {
		t.Fatalf("unexpected record kind: %s", recorder.records[0].Kind)
	}
}

func TestWithdrawRevertClassified(t *testing.T) {
	vaultFake := newFakeVault()
	vaultFake.confirmErr = &model.RevertError{TxHash: "0xwithdraw", Reason: "withdrawal exceeds balance"}
	recorder := &recorderFake{}
	flow := newTestWithdraw(vaultFake, recorder)

	_, err := flow.ConfirmWithdraw(context.Background(), "0.5")
	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		t.Fatalf("expected FlowError, got %v", err)
	}
	if flowErr.Classification.Cause != CauseOnChainRevert {
		t.Fatalf("wrong cause: %s", flowErr.Classification.Cause)
	}
	if flow.State() != WithdrawError {
		t.Fatalf("expected error state, got %s", flow.State())
	}

	if len(recorder.records) != 1 || recorder.records[0].Status != string(model.OutcomeReverted) {
		t.Fatalf("reverted attempt not recorded: %+v", recorder.records)
	}
}

func TestWithdrawFalseNegativeRecovers(t *testing.T) {
	vaultFake := newFakeVault()
	// Share balance drops on the post-check read: the burn landed.
	vaultFake.shares = []*big.Int{big.NewInt(500_000)}
	vaultFake.position.Shares = big.NewInt(1_000_000)
	vaultFake.withdrawErr = &rpcError{code: -32603, msg: "Internal JSON-RPC error."}
	flow := newTestWithdraw(vaultFake, &recorderFake{})

	if _, err := flow.ConfirmWithdraw(context.Background(), "0.5"); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestWithdrawBusyGate(t *testing.T) {
	vaultFake := newFakeVault()
	flow := newTestWithdraw(vaultFake, &recorderFake{})
	flow.mu.Lock()
	flow.busy = true
	flow.mu.Unlock()

	if _, err := flow.ConfirmWithdraw(context.Background(), "0.5"); !errors.Is(err, ErrAttemptInFlight) {
		t.Fatalf("expected ErrAttemptInFlight, got %v", err)
	}
}
