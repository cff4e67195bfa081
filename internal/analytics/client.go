package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is a GraphQL polling client for the backend analytics feed. The
// series it returns is consumed for display only; it is never
// authoritative for a balance or allocation figure.
type Client struct {
	graphqlURL string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an analytics client for the GraphQL endpoint.
func NewClient(graphqlURL, apiKey string) *Client {
	return &Client{
		graphqlURL: graphqlURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PerformancePoint is one day of the historical performance series.
type PerformancePoint struct {
	Timestamp      int64
	SharePrice     string
	APYBasisPoints int64
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchPerformanceSeries returns daily performance points at or after
// the given time, limited by first.
func (c *Client) FetchPerformanceSeries(ctx context.Context, since time.Time, first int) ([]PerformancePoint, error) {
	query := `
		query PerformanceSeries($since: BigInt!, $first: Int!) {
			vaultDailySnapshots(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				timestamp
				sharePrice
				apyBasisPoints
			}
		}
	`

	variables := map[string]any{
		"since": fmt.Sprintf("%d", since.Unix()),
		"first": first,
	}

	respData, err := c.doQuery(ctx, query, variables)
	if err != nil {
		return nil, fmt.Errorf("analytics: fetch performance series: %w", err)
	}

	var result struct {
		VaultDailySnapshots []struct {
			Timestamp      string `json:"timestamp"`
			SharePrice     string `json:"sharePrice"`
			APYBasisPoints string `json:"apyBasisPoints"`
		} `json:"vaultDailySnapshots"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("analytics: decode performance series: %w", err)
	}

	points := make([]PerformancePoint, 0, len(result.VaultDailySnapshots))
	for _, snapshot := range result.VaultDailySnapshots {
		ts, err := strconv.ParseInt(snapshot.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		apy, _ := strconv.ParseInt(snapshot.APYBasisPoints, 10, 64)
		points = append(points, PerformancePoint{
			Timestamp:      ts,
			SharePrice:     snapshot.SharePrice,
			APYBasisPoints: apy,
		})
	}
	return points, nil
}

// LatestAPYBasisPoints returns the most recent published annualized rate,
// used by the reconciler's pro-rata yield estimate.
func (c *Client) LatestAPYBasisPoints(ctx context.Context) (int64, error) {
	points, err := c.FetchPerformanceSeries(ctx, time.Now().Add(-7*24*time.Hour), 7)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("analytics: no performance points published")
	}
	return points[len(points)-1].APYBasisPoints, nil
}

func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	return envelope.Data, nil
}
