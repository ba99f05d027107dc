// Package mcp exposes the job API as Model Context Protocol tools so agents
// can submit prompts and poll results over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zoumson/OpenFreeAI/internal/domain/job"
	"github.com/zoumson/OpenFreeAI/internal/version"
)

// Tool names.
const (
	ToolSubmitPrompt = "submit_prompt"
	ToolPollJobs     = "poll_jobs"
	ToolListModels   = "list_models"
)

// Submitter enqueues prompts; *job.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, sub job.Submission) ([]string, error)
}

// Poller reads job snapshots; *job.Poller satisfies it.
type Poller interface {
	Poll(ctx context.Context, ids []string) ([]job.Snapshot, error)
}

// ModelLister lists catalog ids; *catalog.Service satisfies it.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// SubmitInput mirrors the HTTP prompt body.
type SubmitInput struct {
	Prompt     string   `json:"prompt" jsonschema:"the prompt text"`
	Models     []string `json:"models,omitempty" jsonschema:"full model ids to fan out to"`
	ModelName  string   `json:"model_name,omitempty" jsonschema:"a single full model id"`
	ModelIndex *int     `json:"model_index,omitempty" jsonschema:"catalog position, resolved when the job runs"`
	Stream     bool     `json:"stream,omitempty" jsonschema:"use the streaming completion mode"`
}

// SubmitOutput lists the queued job ids.
type SubmitOutput struct {
	TaskIDs []string `json:"task_ids"`
}

// PollInput names the jobs to report.
type PollInput struct {
	TaskIDs []string `json:"task_ids" jsonschema:"job ids returned by submit_prompt"`
}

// JobView is a job snapshot without timestamps.
type JobView struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PollOutput has one entry per requested id, in order.
type PollOutput struct {
	Jobs    []JobView   `json:"jobs"`
	Summary job.Summary `json:"summary"`
}

// ListModelsInput takes no arguments.
type ListModelsInput struct{}

// ListModelsOutput lists the catalog in index order.
type ListModelsOutput struct {
	Models []string `json:"models"`
}

// Deps are the services behind the tools.
type Deps struct {
	Submitter Submitter
	Poller    Poller
	Models    ModelLister
	Logger    *slog.Logger
}

// NewServer builds an MCP server with the three job tools registered.
func NewServer(d Deps) *mcp.Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	srv := mcp.NewServer(&mcp.Implementation{Name: "openfreeai", Version: version.Version}, nil)
	t := &tools{deps: d}

	mcp.AddTool(srv, &mcp.Tool{
		Name:        ToolSubmitPrompt,
		Description: "Queue a prompt against one or more catalog models and return the job ids.",
	}, t.submit)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        ToolPollJobs,
		Description: "Report the status, result or error of previously submitted jobs.",
	}, t.poll)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        ToolListModels,
		Description: "List the model ids in the catalog, in index order.",
	}, t.listModels)
	return srv
}

// Serve runs srv over stdin/stdout until ctx is done or the client disconnects.
func Serve(ctx context.Context, srv *mcp.Server) error {
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

type tools struct {
	deps Deps
}

func (t *tools) submit(ctx context.Context, _ *mcp.CallToolRequest, in SubmitInput) (*mcp.CallToolResult, SubmitOutput, error) {
	var models []string
	if len(in.Models) > 0 {
		models = in.Models
	}
	ids, err := t.deps.Submitter.Submit(ctx, job.Submission{
		Prompt:    in.Prompt,
		Selection: job.SelectionFrom(in.ModelIndex, in.ModelName, models),
		Stream:    in.Stream,
	})
	if err != nil {
		t.deps.Logger.WarnContext(ctx, "mcp submit rejected", "error", err)
		return nil, SubmitOutput{}, err
	}
	return nil, SubmitOutput{TaskIDs: ids}, nil
}

func (t *tools) poll(ctx context.Context, _ *mcp.CallToolRequest, in PollInput) (*mcp.CallToolResult, PollOutput, error) {
	snaps, err := t.deps.Poller.Poll(ctx, in.TaskIDs)
	if err != nil {
		return nil, PollOutput{}, err
	}
	views := make([]JobView, len(snaps))
	for i, s := range snaps {
		views[i] = JobView{ID: s.ID, Status: string(s.Status), Model: s.Model, Result: s.ResultText(), Error: s.Error}
	}
	return nil, PollOutput{Jobs: views, Summary: job.Summarize(snaps)}, nil
}

func (t *tools) listModels(ctx context.Context, _ *mcp.CallToolRequest, _ ListModelsInput) (*mcp.CallToolResult, ListModelsOutput, error) {
	models, err := t.deps.Models.ListModels(ctx)
	if err != nil {
		return nil, ListModelsOutput{}, err
	}
	return nil, ListModelsOutput{Models: models}, nil
}
