package semantic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wgomg/mitreatlas/internal/config"
	"github.com/wgomg/mitreatlas/internal/utils"
)

const requirementsMarker = ".requirements-installed"

// PythonModel runs sentence-transformers in a single Python subprocess and
// talks to it over line-delimited JSON on stdin/stdout.
type PythonModel struct {
	logger *utils.Logger
	cfg    *config.SemanticConfig
	model  string
	script string
	venv   string

	mu      sync.Mutex
	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	dim     int
}

type pythonConfig struct {
	ModelName           string `json:"model_name"`
	BatchSize           int    `json:"batch_size"`
	NormalizeEmbeddings bool   `json:"normalize_embeddings"`
	ShowProgressBar     bool   `json:"show_progress_bar"`
}

type pythonReady struct {
	Status       string `json:"status"`
	EmbeddingDim int    `json:"embedding_dim"`
	Error        string `json:"error,omitempty"`
}

type pythonRequest struct {
	Texts []string `json:"texts"`
}

type pythonResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func NewPythonModel(logger *utils.Logger, cfg *config.SemanticConfig, model string) *PythonModel {
	pythonDir := filepath.Join(cfg.Python.ConfigDir, "python")

	return &PythonModel{
		logger: logger,
		cfg:    cfg,
		model:  model,
		script: filepath.Join(pythonDir, "encoder.py"),
		venv:   filepath.Join(cfg.Python.ConfigDir, "venv"),
	}
}

// Initialize prepares the Python environment and starts the worker. Any
// failure, including the model name not resolving, is a ModelLoadError.
func (p *PythonModel) Initialize(ctx context.Context) error {
	p.logger.Info("Initializing sentence_transformers with model %s. Please be patient...", p.model)

	python, err := p.setupEnvironment()
	if err != nil {
		return &utils.ModelLoadError{Model: p.model, Err: fmt.Errorf("failed to setup environment: %w", err)}
	}

	if err := p.start(ctx, python); err != nil {
		return &utils.ModelLoadError{Model: p.model, Err: err}
	}

	p.logger.Info("sentence_transformers loaded! embedding_dim=%d", p.dim)
	return nil
}

func (p *PythonModel) start(ctx context.Context, python string) error {
	cmd := exec.CommandContext(ctx, python, p.script)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("start process: %w", err)
	}

	p.process = cmd
	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)

	if err := p.writeLine(pythonConfig{
		ModelName:           p.model,
		BatchSize:           p.cfg.BatchSize,
		NormalizeEmbeddings: false,
		ShowProgressBar:     p.logger.Level() == utils.LevelDebug,
	}); err != nil {
		p.kill()
		return fmt.Errorf("send config: %w", err)
	}

	var ready pythonReady
	if err := p.readLine(&ready); err != nil {
		p.kill()
		return fmt.Errorf("failed to read ready message: %w", err)
	}

	if ready.Status != "ready" {
		p.kill()
		if ready.Error != "" {
			return fmt.Errorf("python worker: %s", ready.Error)
		}
		return fmt.Errorf("unexpected startup status: %s", ready.Status)
	}
	if ready.EmbeddingDim <= 0 {
		p.kill()
		return fmt.Errorf("python worker reported embedding_dim=%d", ready.EmbeddingDim)
	}

	p.dim = ready.EmbeddingDim
	p.logger.Debug("Python worker ready (embedding_dim=%d)", p.dim)
	return nil
}

func (p *PythonModel) EmbedTexts(ctx context.Context, texts []string) ([]Embedding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.process == nil {
		return nil, fmt.Errorf("python worker is not running")
	}

	vectors := make([]Embedding, 0, len(texts))
	for _, batch := range batches(texts, p.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := p.writeLine(pythonRequest{Texts: batch}); err != nil {
			return nil, fmt.Errorf("write request: %w", err)
		}

		var resp pythonResponse
		if err := p.readLine(&resp); err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("python error: %s", resp.Error)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("python worker returned %d embeddings for %d texts", len(resp.Embeddings), len(batch))
		}

		for _, v := range resp.Embeddings {
			if len(v) != p.dim {
				return nil, fmt.Errorf("python worker returned a %d-dim vector, want %d", len(v), p.dim)
			}
			vectors = append(vectors, Embedding(v))
		}
	}

	return vectors, nil
}

func (p *PythonModel) EmbeddingDimension() int {
	return p.dim
}

func (p *PythonModel) Name() string {
	return p.model
}

// Close ends the worker by closing its stdin, killing it if it has not exited
// within the configured shutdown timeout.
func (p *PythonModel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.process == nil {
		return nil
	}

	p.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- p.process.Wait() }()

	timeout := time.Duration(p.cfg.Python.ProcessShutdownTimeout) * time.Second
	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.Debug("Python worker did not exit within %s, killing it", timeout)
		p.process.Process.Kill()
		<-done
	}

	p.process = nil
	return nil
}

func (p *PythonModel) kill() {
	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.process != nil && p.process.Process != nil {
		p.process.Process.Kill()
		p.process.Wait()
	}
	p.process = nil
}

func (p *PythonModel) writeLine(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	line = append(line, '\n')
	_, err = p.stdin.Write(line)
	return err
}

func (p *PythonModel) readLine(v any) error {
	line, err := p.stdout.ReadBytes('\n')
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("python worker exited")
		}
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("parse %q: %w", utils.Truncate(strings.TrimSpace(string(line)), 200), err)
	}
	return nil
}

// setupEnvironment returns the interpreter to run. A configured interpreter is
// used as is; otherwise a venv under the config dir is created and populated.
func (p *PythonModel) setupEnvironment() (string, error) {
	if err := p.extractScriptIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to extract script: %w", err)
	}

	if p.cfg.Python.Interpreter != "" {
		p.logger.Debug("Using configured Python interpreter %s", p.cfg.Python.Interpreter)
		return p.cfg.Python.Interpreter, nil
	}

	if err := p.checkPython(); err != nil {
		return "", fmt.Errorf("python check failed: %w", err)
	}

	if err := p.createVenv(); err != nil {
		return "", fmt.Errorf("failed to create venv: %w", err)
	}

	if !p.cfg.Python.SkipInstall {
		if err := p.installRequirements(); err != nil {
			return "", fmt.Errorf("failed to install requirements: %w", err)
		}
	}

	return filepath.Join(p.venv, "bin", "python"), nil
}

func (p *PythonModel) checkPython() error {
	cmd := exec.Command("python3", "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("python3 not found: %w", err)
	}

	p.logger.Debug("Python3 found")
	return nil
}

func (p *PythonModel) createVenv() error {
	venvPython := filepath.Join(p.venv, "bin", "python")

	if _, err := os.Stat(venvPython); err == nil {
		p.logger.Debug("Virtual environment already exists at %s", p.venv)
		return nil
	}

	p.logger.Info("Creating virtual environment at %s", p.venv)

	cmd := exec.Command("python3", "-m", "venv", p.venv)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create venv: %s: %w", output, err)
	}

	p.logger.Info("Virtual environment created successfully")
	return nil
}

// installRequirements runs pip once per requirements content; a marker file
// in the venv records what was installed.
func (p *PythonModel) installRequirements() error {
	marker := filepath.Join(p.venv, requirementsMarker)
	if installed, err := os.ReadFile(marker); err == nil && string(installed) == embeddedRequirements {
		p.logger.Debug("Python requirements already installed")
		return nil
	}

	venvPip := filepath.Join(p.venv, "bin", "pip")
	p.logger.Info("Installing Python requirements")

	for _, req := range strings.Fields(embeddedRequirements) {
		p.logger.Debug("Installing: %s", req)

		cmd := exec.Command(venvPip, "install", req)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to install %s: %s: %w", req, output, err)
		}
	}

	if err := os.WriteFile(marker, []byte(embeddedRequirements), 0644); err != nil {
		return fmt.Errorf("failed to write requirements marker: %w", err)
	}

	p.logger.Info("Python requirements installed successfully")
	return nil
}

func (p *PythonModel) extractScriptIfNeeded() error {
	pythonDir := filepath.Dir(p.script)

	if err := os.MkdirAll(pythonDir, 0755); err != nil {
		return fmt.Errorf("failed to create python directory: %w", err)
	}

	if existing, err := os.ReadFile(p.script); err == nil && string(existing) == embeddedPythonScript {
		p.logger.Debug("Python script already exists at %s", p.script)
		return nil
	}

	p.logger.Debug("Extracting embedded Python script to %s", p.script)

	if err := os.WriteFile(p.script, []byte(embeddedPythonScript), 0755); err != nil {
		return fmt.Errorf("failed to write python script: %w", err)
	}

	requirementsPath := filepath.Join(pythonDir, "requirements.txt")
	if err := os.WriteFile(requirementsPath, []byte(embeddedRequirements), 0644); err != nil {
		return fmt.Errorf("failed to write requirements file: %w", err)
	}

	return nil
}
