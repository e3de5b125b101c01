// Package mcptools exposes the payment-gated weather flow as MCP tools, so
// an agent can fetch gated resources and inspect its wallet over the Model
// Context Protocol.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
	"github.com/devcode8/fetch.ai-X-x402-integration/ledger"
	"github.com/devcode8/fetch.ai-X-x402-integration/payclient"
	"github.com/devcode8/fetch.ai-X-x402-integration/signer"
)

// Config holds the collaborators the tools operate on.
type Config struct {
	// WeatherURL is the gated weather endpoint, e.g.
	// "http://localhost:8080/weather". Required for the get_weather tool.
	WeatherURL string

	// Client settles payment challenges. Required.
	Client *payclient.Client

	// Signer owns the paying wallet. Required.
	Signer *signer.Signer

	// Ledger reads wallet state. Required.
	Ledger ledger.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server wraps an MCP server whose tools pay for gated resources.
type Server struct {
	mcpServer *mcpserver.MCPServer
	cfg       Config
	logger    *slog.Logger
}

// NewServer creates the MCP server and registers the tools.
func NewServer(name, version string, cfg Config) (*Server, error) {
	if cfg.Client == nil || cfg.Signer == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: mcptools requires a client, a signer, and a ledger", x402.ErrInvalidInput)
	}
	if cfg.WeatherURL == "" {
		return nil, fmt.Errorf("%w: mcptools requires a weather endpoint URL", x402.ErrInvalidInput)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcpserver.NewMCPServer(name, version),
		cfg:       cfg,
		logger:    logger,
	}

	weatherTool := mcp.NewTool(
		"get_weather",
		mcp.WithDescription("Get current weather for a location. Pays the resource's on-chain challenge automatically."),
		mcp.WithString("location", mcp.Required(), mcp.Description("City name, e.g. Tokyo")),
	)
	s.mcpServer.AddTool(weatherTool, s.handleGetWeather)

	balanceTool := mcp.NewTool(
		"check_balance",
		mcp.WithDescription("Check the paying wallet's native balance and next nonce."),
	)
	s.mcpServer.AddTool(balanceTool, s.handleCheckBalance)

	signingTool := mcp.NewTool(
		"check_transaction_signing",
		mcp.WithDescription("Verify the wallet can sign transactions. Signs a probe transaction locally without submitting it."),
	)
	s.mcpServer.AddTool(signingTool, s.handleCheckSigning)

	return s, nil
}

func (s *Server) handleGetWeather(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	location, _ := args["location"].(string)
	if location == "" {
		return mcp.NewToolResultError("location is required"), nil
	}

	paid, err := s.cfg.Client.GetPaid(s.cfg.WeatherURL + "?location=" + url.QueryEscape(location))
	if err != nil {
		s.logger.Error("gated weather fetch failed", "location", location, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("weather fetch failed: %v", err)), nil
	}
	s.logger.Info("weather fetched", "location", location, "tx", paid.TxHash)

	summary, err := json.Marshal(struct {
		Weather     json.RawMessage `json:"weather"`
		PaidWithTx  string          `json:"paid_with_tx"`
		BlockNumber uint64          `json:"block_number,omitempty"`
	}{
		Weather:     paid.Data,
		PaidWithTx:  paid.TxHash,
		BlockNumber: paid.BlockNumber,
	})
	if err != nil {
		return nil, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(summary))},
	}, nil
}

func (s *Server) handleCheckBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet, err := s.cfg.Ledger.Wallet(ctx, s.cfg.Signer.Address())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("balance check failed: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("address %s holds %s ETH (%s wei), next nonce %d",
				wallet.Address, x402.WeiToEther(wallet.Balance), wallet.Balance, wallet.NextNonce)),
		},
	}, nil
}

func (s *Server) handleCheckSigning(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.cfg.Signer.CheckSigning(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("signing check failed: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("wallet %s can sign transactions on chain %d",
				s.cfg.Signer.Address().Hex(), s.cfg.Signer.ChainID())),
		},
	}, nil
}

// Handler returns the streamable HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// Start serves MCP over HTTP on the given address.
func (s *Server) Start(addr string) error {
	s.logger.Info("mcp server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ServeStdio serves MCP over stdin and stdout for editor and agent hosts.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying server for advanced usage.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
