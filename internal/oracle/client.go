package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultflow/internal/model"
)

// SnapshotRequest asks the attestation service to sign the depositor's
// cross-chain balance for one deposit attempt.
type SnapshotRequest struct {
	AmountSmallestUnit *big.Int
	Depositor          string
	ChainID            uint64
}

// Client issues balance snapshots. The response is untrusted input to a
// signature-checked on-chain call; replay protection is the vault
// contract's job via nonce and deadline.
type Client interface {
	RequestSnapshot(ctx context.Context, req SnapshotRequest) (model.BalanceSnapshot, error)
}

// HTTPClient talks to the attestation service over JSON HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the attestation endpoint.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type snapshotRequestBody struct {
	Amount    string `json:"amount"`
	Depositor string `json:"depositor"`
	ChainID   uint64 `json:"chain_id"`
}

type snapshotResponseBody struct {
	Balance   string `json:"balance"`
	Nonce     string `json:"nonce"`
	Deadline  string `json:"deadline"`
	Assets    string `json:"assets"`
	Receiver  string `json:"receiver"`
	Signature string `json:"signature"`
}

// RequestSnapshot posts the deposit parameters and decodes the signed
// snapshot tuple.
func (c *HTTPClient) RequestSnapshot(ctx context.Context, req SnapshotRequest) (model.BalanceSnapshot, error) {
	if req.AmountSmallestUnit == nil {
		return model.BalanceSnapshot{}, fmt.Errorf("amount is required")
	}

	body, err := json.Marshal(snapshotRequestBody{
		Amount:    req.AmountSmallestUnit.String(),
		Depositor: req.Depositor,
		ChainID:   req.ChainID,
	})
	if err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("marshal snapshot request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/snapshot", bytes.NewReader(body))
	if err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("build snapshot request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("request snapshot: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("read snapshot response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.BalanceSnapshot{}, fmt.Errorf("snapshot request failed: status %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	var decoded snapshotResponseBody
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("decode snapshot response: %w", err)
	}

	return buildSnapshot(decoded)
}

func buildSnapshot(body snapshotResponseBody) (model.BalanceSnapshot, error) {
	balance, err := parseBig(body.Balance, "balance")
	if err != nil {
		return model.BalanceSnapshot{}, err
	}
	nonce, err := parseBig(body.Nonce, "nonce")
	if err != nil {
		return model.BalanceSnapshot{}, err
	}
	deadline, err := parseBig(body.Deadline, "deadline")
	if err != nil {
		return model.BalanceSnapshot{}, err
	}
	assets, err := parseBig(body.Assets, "assets")
	if err != nil {
		return model.BalanceSnapshot{}, err
	}
	signature, err := hexutil.Decode(body.Signature)
	if err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("decode signature: %w", err)
	}

	return model.BalanceSnapshot{
		Balance:   balance,
		Nonce:     nonce,
		Deadline:  deadline,
		Assets:    assets,
		Receiver:  body.Receiver,
		Signature: signature,
	}, nil
}

func parseBig(value, field string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("snapshot %s is empty", field)
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("snapshot %s is not a decimal integer: %s", field, value)
	}
	return parsed, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
