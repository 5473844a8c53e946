// Package advisor 调用外部调度建议服务，为一条任务推荐司机与车辆。
// 结果纯属建议：调用方在提交指派前必须重新校验建议的目标是否仍然
// 存在且可用，本包绝不直接改动任何业务状态。
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ChakraFleet/ChakraFleet/internal/common/config"
	"github.com/ChakraFleet/ChakraFleet/internal/common/logger"
	"github.com/ChakraFleet/ChakraFleet/internal/common/middleware"
)

// ErrDisabled 未配置建议服务地址。
var ErrDisabled = errors.New("assignment advisor is not configured")

// DriverCandidate 候选司机画像。
type DriverCandidate struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Availability bool     `json:"availability"`
	Location     string   `json:"location,omitempty"`
	PastJobIDs   []string `json:"pastJobIds,omitempty"`
}

// VehicleCandidate 候选车辆画像。
type VehicleCandidate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Location string `json:"location,omitempty"`
	Type     string `json:"type"`
	Capacity string `json:"capacity,omitempty"`
}

// HistoricalJob 已完成任务摘要，供模型参考过往分配。
type HistoricalJob struct {
	Title            string  `json:"title"`
	DriverID         string  `json:"driverId,omitempty"`
	VehicleID        string  `json:"vehicleId,omitempty"`
	KilometersDriven float64 `json:"kilometersDriven,omitempty"`
}

// SuggestRequest 一次建议请求。
type SuggestRequest struct {
	JobDescription string             `json:"jobDescription"`
	Drivers        []DriverCandidate  `json:"drivers"`
	Vehicles       []VehicleCandidate `json:"vehicles"`
	Historical     []HistoricalJob    `json:"historicalJobs,omitempty"`
}

// Suggestion 建议结果：推荐的司机/车辆各带一段自由文本理由。
type Suggestion struct {
	SuggestedDriverID  string `json:"suggestedDriverId"`
	DriverReason       string `json:"driverReason"`
	SuggestedVehicleID string `json:"suggestedVehicleId"`
	VehicleReason      string `json:"vehicleReason"`
}

// Client 建议服务 HTTP 客户端，带熔断保护。
type Client struct {
	endpoint string
	http     *http.Client
	breaker  *middleware.CircuitBreaker
	log      logger.Logger
}

func NewClient(cfg config.AdvisorConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	reset := time.Duration(cfg.ResetSeconds) * time.Second
	if reset <= 0 {
		reset = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: timeout},
		breaker:  middleware.NewCircuitBreaker("assignment-advisor", maxFailures, reset),
		log:      log,
	}
}

// Enabled 是否配置了建议服务。
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Suggest 请求一次指派建议。
func (c *Client) Suggest(ctx context.Context, req SuggestRequest) (*Suggestion, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	var out Suggestion
	err := c.breaker.Call(ctx, func() error {
		return c.doSuggest(ctx, req, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doSuggest(ctx context.Context, req SuggestRequest, out *Suggestion) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("advisor returned %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
