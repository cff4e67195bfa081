package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"vaultflow/internal/model"
	"vaultflow/internal/oracle"
)

var testDepositor = common.HexToAddress("0x00000000000000000000000000000000000000aa")

// fakeVault scripts the per-chain contract surface. Successive reads pop
// from their slices; the last value repeats.
type fakeVault struct {
	mu sync.Mutex

	network    model.Network
	allowances []*big.Int
	shares     []*big.Int
	position   model.UserPosition

	approveErr     error
	depositErr     error
	depositSnapErr error
	withdrawErr    error
	confirmErr     error

	calls []string

	blockDeposit   chan struct{}
	depositEntered chan struct{}
	enteredOnce    sync.Once
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		network:    model.Network{ChainID: 42161, Name: "arbitrum"},
		allowances: []*big.Int{big.NewInt(0)},
		shares:     []*big.Int{big.NewInt(0)},
		position: model.UserPosition{
			Shares:      big.NewInt(1_000_000),
			TotalAssets: big.NewInt(1_000_000),
			TotalSupply: big.NewInt(1_000_000),
		},
	}
}

func (f *fakeVault) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeVault) callSequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func pop(values *[]*big.Int) *big.Int {
	v := (*values)[0]
	if len(*values) > 1 {
		*values = (*values)[1:]
	}
	return new(big.Int).Set(v)
}

func (f *fakeVault) Network() model.Network { return f.network }

func (f *fakeVault) Allowance(_ context.Context, _ common.Address) (*big.Int, error) {
	f.record("allowance")
	f.mu.Lock()
	defer f.mu.Unlock()
	return pop(&f.allowances), nil
}

func (f *fakeVault) ShareBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	f.record("shares")
	f.mu.Lock()
	defer f.mu.Unlock()
	return pop(&f.shares), nil
}

func (f *fakeVault) Position(_ context.Context, _ common.Address) (model.UserPosition, error) {
	f.record("position")
	return f.position, nil
}

func (f *fakeVault) SubmitApproval(_ context.Context, _ *big.Int) (string, error) {
	f.record("submit_approval")
	if f.approveErr != nil {
		return "", f.approveErr
	}
	return "0xapprove", nil
}

func (f *fakeVault) SubmitDeposit(_ context.Context, _ *big.Int, _ common.Address) (string, error) {
	if f.depositEntered != nil {
		f.enteredOnce.Do(func() { close(f.depositEntered) })
	}
	if f.blockDeposit != nil {
		<-f.blockDeposit
	}
	f.record("submit_deposit")
	if f.depositErr != nil {
		return "", f.depositErr
	}
	return "0xdeposit", nil
}

func (f *fakeVault) SubmitDepositWithSnapshot(_ context.Context, _ *big.Int, _ common.Address, _ model.BalanceSnapshot) (string, error) {
	f.record("submit_deposit_snapshot")
	if f.depositSnapErr != nil {
		return "", f.depositSnapErr
	}
	return "0xdepositsnap", nil
}

func (f *fakeVault) SubmitWithdraw(_ context.Context, _ *big.Int, _, _ common.Address) (string, error) {
	f.record("submit_withdraw")
	if f.withdrawErr != nil {
		return "", f.withdrawErr
	}
	return "0xwithdraw", nil
}

func (f *fakeVault) Confirm(_ context.Context, txHash string) error {
	f.record("confirm:" + txHash)
	return f.confirmErr
}

// fakeOracle returns a scripted snapshot.
type fakeOracle struct {
	snapshot model.BalanceSnapshot
	err      error
}

func (f *fakeOracle) RequestSnapshot(_ context.Context, _ oracle.SnapshotRequest) (model.BalanceSnapshot, error) {
	if f.err != nil {
		return model.BalanceSnapshot{}, f.err
	}
	return f.snapshot, nil
}

func zeroSnapshot() model.BalanceSnapshot {
	return model.BalanceSnapshot{
		Balance:  big.NewInt(0),
		Nonce:    big.NewInt(1),
		Deadline: big.NewInt(9_999_999_999),
		Assets:   big.NewInt(0),
	}
}

// recorderFake collects appended history records.
type recorderFake struct {
	mu      sync.Mutex
	records []model.HistoryRecord
}

func (r *recorderFake) Append(record model.HistoryRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	return nil
}

func indexOf(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}

func countOf(calls []string, call string) int {
	n := 0
	for _, c := range calls {
		if c == call {
			n++
		}
	}
	return n
}

func newTestDeposit(vaultFake *fakeVault, oracleFake *fakeOracle, recorder *recorderFake) *DepositOrchestrator {
	return NewDepositOrchestrator(vaultFake, oracleFake, recorder, testDepositor, nil, WithPostCheckDelay(0))
}

func TestDepositSkipsApprovalWhenAllowanceSufficient(t *testing.T) {
	vaultFake := newFakeVault()
	vaultFake.allowances = []*big.Int{big.NewInt(10_000_000)}
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: zeroSnapshot()}, &recorderFake{})

	if _, err := flow.ConfirmDeposit(context.Background(), "1.5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := vaultFake.callSequence()
	if indexOf(calls, "submit_approval") != -1 {
		t.Fatalf("approval submitted despite sufficient allowance: %v", calls)
	}
	if indexOf(calls, "submit_deposit") == -1 {
		t.Fatalf("plain deposit not submitted: %v", calls)
	}
	if flow.State() != DepositInput {
		t.Fatalf("flow not reset: %s", flow.State())
	}
}

func TestDepositApprovalConfirmsBeforeDeposit(t *testing.T) {
	vaultFake := newFakeVault()
	recorder := &recorderFake{}
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: zeroSnapshot()}, recorder)

	if _, err := flow.ConfirmDeposit(context.Background(), "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := vaultFake.callSequence()
	approvalIdx := indexOf(calls, "submit_approval")
	approvalConfirmIdx := indexOf(calls, "confirm:0xapprove")
	depositIdx := indexOf(calls, "submit_deposit")
	if approvalIdx == -1 || approvalConfirmIdx == -1 || depositIdx == -1 {
		t.Fatalf("missing calls: %v", calls)
	}
	if !(approvalIdx < approvalConfirmIdx && approvalConfirmIdx < depositIdx) {
		t.Fatalf("deposit submitted before approval confirmed: %v", calls)
	}
}

func TestDepositUsesSnapshotPathForNonzeroBalance(t *testing.T) {
	vaultFake := newFakeVault()
	vaultFake.allowances = []*big.Int{big.NewInt(10_000_000)}
	snapshot := zeroSnapshot()
	snapshot.Balance = big.NewInt(500)
	snapshot.Signature = []byte{0x01}
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: snapshot}, &recorderFake{})

	if _, err := flow.ConfirmDeposit(context.Background(), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := vaultFake.callSequence()
	if indexOf(calls, "submit_deposit_snapshot") == -1 {
		t.Fatalf("snapshot deposit not used: %v", calls)
	}
	if indexOf(calls, "submit_deposit") != -1 {
		t.Fatalf("plain deposit used despite attested balance: %v", calls)
	}
}

func TestDepositOracleUnavailableAbortsBeforeWrite(t *testing.T) {
	vaultFake := newFakeVault()
	vaultFake.allowances = []*big.Int{big.NewInt(10_000_000)}
	flow := newTestDeposit(vaultFake, &fakeOracle{err: errors.New("dial tcp: connection refused")}, &recorderFake{})

	_, err := flow.ConfirmDeposit(context.Background(), "1")
	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		t.Fatalf("expected FlowError, got %v", err)
	}
	var oracleErr *model.OracleUnavailableError
	if !errors.As(err, &oracleErr) {
		t.Fatalf("expected OracleUnavailableError in chain, got %v", err)
	}

	calls := vaultFake.callSequence()
	for _, call := range calls {
		switch call {
		case "submit_deposit", "submit_deposit_snapshot", "submit_approval":
			t.Fatalf("write submitted despite oracle failure: %v", calls)
		}
	}
	if flow.State() != DepositError {
		t.Fatalf("expected error state, got %s", flow.State())
	}
}

func TestDepositApprovalFalseNegativeRecovers(t *testing.T) {
	vaultFake := newFakeVault()
	// Initial allowance check fails the gate; the post-check read shows
	// the approval actually landed.
	vaultFake.allowances = []*big.Int{big.NewInt(0), big.NewInt(100_000_000)}
	vaultFake.approveErr = &rpcError{code: -32603, msg: "Internal JSON-RPC error."}
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: zeroSnapshot()}, &recorderFake{})

	if _, err := flow.ConfirmDeposit(context.Background(), "1"); err != nil {
		t.Fatalf("expected recovery without user intervention, got %v", err)
	}

	calls := vaultFake.callSequence()
	if indexOf(calls, "submit_deposit") == -1 {
		t.Fatalf("deposit not submitted after recovery: %v", calls)
	}
}

func TestDepositApprovalFalseNegativeStaysFailed(t *testing.T) {
	vaultFake := newFakeVault()
	// Post-check allowance is still insufficient: the preflight error was
	// real.
	vaultFake.allowances = []*big.Int{big.NewInt(0), big.NewInt(0)}
	vaultFake.approveErr = &rpcError{code: -32603, msg: "Internal JSON-RPC error."}
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: zeroSnapshot()}, &recorderFake{})

	_, err := flow.ConfirmDeposit(context.Background(), "1")
	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		t.Fatalf("expected FlowError, got %v", err)
	}
	if flowErr.Classification.Cause != CauseSimulationFalseNeg {
		t.Fatalf("wrong cause: %s", flowErr.Classification.Cause)
	}
	if flow.State() != DepositError {
		t.Fatalf("expected error state, got %s", flow.State())
	}
}

func TestDepositNoSecondSubmissionWhileInFlight(t *testing.T) {
	vaultFake := newFakeVault()
	vaultFake.allowances = []*big.Int{big.NewInt(10_000_000)}
	vaultFake.blockDeposit = make(chan struct{})
	vaultFake.depositEntered = make(chan struct{})
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: zeroSnapshot()}, &recorderFake{})

	done := make(chan error, 1)
	go func() {
		_, err := flow.ConfirmDeposit(context.Background(), "1")
		done <- err
	}()

	<-vaultFake.depositEntered
	if _, err := flow.ConfirmDeposit(context.Background(), "1"); !errors.Is(err, ErrAttemptInFlight) {
		t.Fatalf("expected ErrAttemptInFlight, got %v", err)
	}
	close(vaultFake.blockDeposit)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := countOf(vaultFake.callSequence(), "submit_deposit"); n != 1 {
		t.Fatalf("expected exactly one deposit submission, got %d", n)
	}
}

func TestDepositUserRejected(t *testing.T) {
	vaultFake := newFakeVault()
	vaultFake.allowances = []*big.Int{big.NewInt(10_000_000)}
	vaultFake.depositErr = errors.New("User rejected the request")
	recorder := &recorderFake{}
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: zeroSnapshot()}, recorder)

	_, err := flow.ConfirmDeposit(context.Background(), "1")
	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		t.Fatalf("expected FlowError, got %v", err)
	}
	if flowErr.Classification.Cause != CauseUserRejected {
		t.Fatalf("wrong cause: %s", flowErr.Classification.Cause)
	}

	flow.Reset()
	if flow.State() != DepositInput {
		t.Fatalf("retry should return to input, got %s", flow.State())
	}
}

func TestDepositRecordsConfirmedHistory(t *testing.T) {
	vaultFake := newFakeVault()
	vaultFake.allowances = []*big.Int{big.NewInt(10_000_000)}
	recorder := &recorderFake{}
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: zeroSnapshot()}, recorder)

	if _, err := flow.ConfirmDeposit(context.Background(), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("expected one history record, got %d", len(recorder.records))
	}
	record := recorder.records[0]
	if record.TxHash != "0xdeposit" || record.Status != string(model.OutcomeConfirmed) {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestNoteConfirmationIgnoresStaleEvents(t *testing.T) {
	vaultFake := newFakeVault()
	flow := newTestDeposit(vaultFake, &fakeOracle{snapshot: zeroSnapshot()}, &recorderFake{})

	if flow.NoteConfirmation("0xdead") {
		t.Fatalf("confirmation for unknown attempt should be ignored")
	}
}
