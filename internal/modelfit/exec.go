package modelfit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	apperrors "bmdscreen/internal/errors"
	"bmdscreen/pkg/contracts/domain"
)

// ExecModeler runs an external executable once per call. The executable is
// invoked as "<command> <args...> fit" or "<command> <args...> select" with
// a JSON request on stdin and must write a JSON response to stdout.
type ExecModeler struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecModeler returns a modeler for command. timeout bounds each call in
// addition to the caller's context.
func NewExecModeler(command string, args []string, timeout time.Duration, logger *slog.Logger) *ExecModeler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecModeler{
		command: command,
		args:    append([]string(nil), args...),
		timeout: timeout,
		logger:  logger.With(slog.String("component", "exec_modeler")),
	}
}

type fitRequest struct {
	ChemicalID string                   `json:"chemical_id"`
	Endpoint   string                   `json:"endpoint"`
	Rows       []domain.DoseResponseRow `json:"rows"`
}

type fitResponse struct {
	Candidates []CandidateModel `json:"candidates"`
}

type selectRequest struct {
	ChemicalID string           `json:"chemical_id"`
	Endpoint   string           `json:"endpoint"`
	Candidates []CandidateModel `json:"candidates"`
}

// Fit sends the table to the executable and returns its candidate models
func (m *ExecModeler) Fit(ctx context.Context, key domain.UnitKey, table domain.DoseResponseTable) ([]CandidateModel, error) {
	var resp fitResponse
	req := fitRequest{ChemicalID: key.ChemicalID, Endpoint: key.Endpoint, Rows: table.Rows}
	if err := m.call(ctx, "fit", req, &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

// Select asks the executable to pick among candidates
func (m *ExecModeler) Select(ctx context.Context, key domain.UnitKey, candidates []CandidateModel) (domain.FitOutcome, error) {
	var out domain.FitOutcome
	req := selectRequest{ChemicalID: key.ChemicalID, Endpoint: key.Endpoint, Candidates: candidates}
	if err := m.call(ctx, "select", req, &out); err != nil {
		return domain.FitOutcome{}, err
	}
	if out.NoUniqueModelFound != 0 && out.NoUniqueModelFound != 1 {
		return domain.FitOutcome{}, apperrors.NewModelFitError(
			fmt.Sprintf("select returned no_unique_model_found_flag=%d", out.NoUniqueModelFound), nil)
	}
	out.Candidates = len(candidates)
	return out, nil
}

func (m *ExecModeler) call(ctx context.Context, verb string, req, resp interface{}) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", verb, err)
	}

	args := append(append([]string(nil), m.args...), verb)
	cmd := exec.CommandContext(ctx, m.command, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit stdout must not hold Run open after a kill
	cmd.WaitDelay = 2 * time.Second

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperrors.NewTimeoutError(fmt.Sprintf("model %s timed out", verb), ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return apperrors.NewModelFitError(
				fmt.Sprintf("model %s exited with %d: %s", verb, exitErr.ExitCode(), strings.TrimSpace(stderr.String())), err)
		}
		return apperrors.NewModelFitError(fmt.Sprintf("model %s failed to start", verb), err)
	}

	m.logger.DebugContext(ctx, "model call finished",
		slog.String("verb", verb),
		slog.Duration("duration", time.Since(started)))

	if err := json.Unmarshal(stdout.Bytes(), resp); err != nil {
		return apperrors.NewModelFitError(fmt.Sprintf("decode %s response", verb), err)
	}
	return nil
}
