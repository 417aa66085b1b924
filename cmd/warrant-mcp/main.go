package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/13g7895123/stock.warrant/linebot"
	"github.com/13g7895123/stock.warrant/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("WARRANT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:5000"
	}
	apiKey := os.Getenv("WARRANT_API_KEY")

	s := server.NewMCPServer(
		"warrant",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	queryTool := mcp.NewTool("query_warrants",
		mcp.WithDescription("List the warrants issued on a Taiwan-listed stock (name, code, price, moneyness, days to expiry), scraped live from HiStock. A full crawl can take a minute."),
		mcp.WithString("stock_code",
			mcp.Required(),
			mcp.Description("Underlying stock code, 4 to 6 digits (e.g. 2330)"),
		),
		mcp.WithString("kind",
			mcp.Description("'quick' (preset issuer filter, first pages), 'normal' (every page, default) or 'outofmoney' (only out-of-the-money warrants)"),
			mcp.Enum("quick", "normal", "outofmoney"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Stop after this many result pages (15 rows each). Default: the preset's value"),
		),
		mcp.WithString("name",
			mcp.Description("Keep only warrants whose name contains this text, e.g. an issuer such as 元大"),
		),
		mcp.WithString("format",
			mcp.Description("'list' (one line per warrant, default) or 'detail' (first ten warrants in full)"),
			mcp.Enum("list", "detail"),
		),
	)
	s.AddTool(queryTool, handleQueryWarrants(apiURL, apiKey))

	jobTool := mcp.NewTool("submit_warrant_job",
		mcp.WithDescription("Start a warrant query in the background and wait for it, for crawls that may outlast a single HTTP request."),
		mcp.WithString("stock_code",
			mcp.Required(),
			mcp.Description("Underlying stock code, 4 to 6 digits"),
		),
		mcp.WithString("kind",
			mcp.Description("'quick', 'normal' (default) or 'outofmoney'"),
			mcp.Enum("quick", "normal", "outofmoney"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Stop after this many result pages"),
		),
	)
	s.AddTool(jobTool, handleSubmitJob(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiDo sends a request to the warrant API and returns the response body.
func apiDo(ctx context.Context, client *http.Client, method, endpoint, apiKey string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJob polls a job until it leaves the processing state or ctx ends.
func pollJob(ctx context.Context, client *http.Client, endpoint, apiKey string) (*models.JobStatusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiDo(ctx, client, http.MethodGet, endpoint, apiKey, nil)
			if err != nil {
				return nil, err
			}
			var status models.JobStatusResponse
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != models.JobProcessing {
				return &status, nil
			}
		}
	}
}

func handleQueryWarrants(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := request.RequireString("stock_code")
		if err != nil {
			return mcp.NewToolResultError("stock_code is required"), nil
		}
		if !models.ValidStockCode(code) {
			return mcp.NewToolResultError("stock_code must be 4 to 6 digits"), nil
		}

		q := url.Values{}
		if kind := request.GetString("kind", ""); kind != "" {
			q.Set("kind", kind)
		}
		if n := request.GetInt("max_pages", 0); n > 0 {
			q.Set("max_pages", strconv.Itoa(n))
		}
		if name := request.GetString("name", ""); name != "" {
			q.Set("name", name)
		}
		endpoint := apiURL + "/api/v1/warrants/" + url.PathEscape(code)
		if len(q) > 0 {
			endpoint += "?" + q.Encode()
		}

		body, err := apiDo(ctx, client, http.MethodGet, endpoint, apiKey, nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var resp models.QueryResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success || resp.Result == nil {
			msg := "query failed"
			if resp.Error != nil {
				msg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(msg), nil
		}

		if request.GetString("format", "list") == "detail" {
			return mcp.NewToolResultText(linebot.FormatResult(resp.Result)), nil
		}
		return mcp.NewToolResultText(linebot.FormatSimpleList(resp.Result)), nil
	}
}

func handleSubmitJob(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := request.RequireString("stock_code")
		if err != nil {
			return mcp.NewToolResultError("stock_code is required"), nil
		}

		payload := models.JobRequest{
			StockCode: code,
			Kind:      request.GetString("kind", ""),
			MaxPages:  request.GetInt("max_pages", 0),
		}
		body, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/jobs", apiKey, payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("job request failed: %v", err)), nil
		}
		var created models.JobResponse
		if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
			return mcp.NewToolResultError(fmt.Sprintf("job creation failed: %s", body)), nil
		}

		status, err := pollJob(ctx, client, apiURL+"/api/v1/jobs/"+created.ID, apiKey)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling job failed: %v", err)), nil
		}
		if status.Result == nil {
			return mcp.NewToolResultError("job " + status.Status + " without a result"), nil
		}
		return mcp.NewToolResultText(linebot.FormatSimpleList(status.Result)), nil
	}
}
