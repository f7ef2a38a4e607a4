package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/suteetoe/storefront/internal/storefront"
	"go.uber.org/zap"
)

// CommandGenerator hands the payload to a deployment hook. The hook reads
// the JSON payload on stdin and must exit zero once every artifact exists.
type CommandGenerator struct {
	command string
	timeout time.Duration
	files   *FileGenerator
	log     *zap.Logger
}

func NewCommandGenerator(command string, timeout time.Duration, files *FileGenerator, log *zap.Logger) *CommandGenerator {
	return &CommandGenerator{command: command, timeout: timeout, files: files, log: log}
}

func (g *CommandGenerator) Generate(ctx context.Context, p storefront.Payload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", g.command)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(),
		"STORE_SLUG="+p.Slug,
		"ASSETS_ROOT="+g.files.layout.AssetsRoot,
		"SOURCE_ROOT="+g.files.layout.SourceRoot,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		return fmt.Errorf("generator hook failed: %w: %s", err, strings.TrimSpace(out.String()))
	}
	g.log.Info("Generator hook completed",
		zap.String("store_slug", p.Slug),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Remove deletes the artifacts at their standard locations.
func (g *CommandGenerator) Remove(ctx context.Context, slug string) error {
	return g.files.Remove(ctx, slug)
}
