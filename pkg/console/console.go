// Package console provides the interactive client for a Rikugan
// server. It drives model control over REST and activation turns over
// the WebSocket stream.
package console

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rikugan-dev/rikugan/pkg/client"
	"github.com/rikugan-dev/rikugan/pkg/protocol"
	"github.com/rikugan-dev/rikugan/pkg/spinner"
)

// Config holds console configuration.
type Config struct {
	ServerURL    string
	HistoryFile  string
	MaxNewTokens int
}

// Console is the interactive command-line client.
type Console struct {
	api          *client.Client
	stream       *StreamClient
	rl           *readline.Instance
	maxNewTokens int
}

// New creates a console connected to the given server.
func New(cfg Config) (*Console, error) {
	api := client.New(cfg.ServerURL)

	stream, err := DialStream(api.BaseURL())
	if err != nil {
		return nil, err
	}

	c := &Console{
		api:          api,
		stream:       stream,
		maxNewTokens: cfg.MaxNewTokens,
	}
	if c.maxNewTokens <= 0 {
		c.maxNewTokens = protocol.DefaultMaxNewTokens
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mrikugan>\033[0m ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    NewCompleter(c.modelNames),
	})
	if err != nil {
		stream.Close()
		return nil, err
	}
	c.rl = rl
	return c, nil
}

// modelNames feeds tab completion. Failures just mean no completions.
func (c *Console) modelNames() []string {
	models, err := c.api.ListModels(context.Background())
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.ID)
	}
	return names
}

// Run starts the interactive loop.
func (c *Console) Run(ctx context.Context) error {
	defer c.rl.Close()
	defer c.stream.Close()

	fmt.Println("Type a prompt to run a turn with activation capture.")
	fmt.Println("Commands: /models, /load, /unload, /health, /run, /tokens, /help, /quit")
	fmt.Println()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if err := c.handleCommand(ctx, line); err != nil {
				if err == errQuit {
					return nil
				}
				fmt.Printf("Error: %v\n", err)
			}
			continue
		}

		if err := c.handleTurn(line); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

var errQuit = fmt.Errorf("quit")

func (c *Console) handleCommand(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	cmd := parts[0]

	switch cmd {
	case "/quit", "/exit", "/q":
		return errQuit

	case "/help", "/h":
		c.printHelp()

	case "/models":
		return c.printModels(ctx)

	case "/load":
		if len(parts) < 2 {
			fmt.Println("Usage: /load <model>")
			return nil
		}
		return c.loadModel(ctx, parts[1])

	case "/unload":
		if len(parts) < 2 {
			fmt.Println("Usage: /unload <model>")
			return nil
		}
		action, err := c.api.UnloadModel(ctx, parts[1])
		if err != nil {
			return err
		}
		fmt.Println(action.Message)

	case "/health":
		health, err := c.api.Health(ctx)
		if err != nil {
			return err
		}
		if health.ModelID == "" {
			fmt.Printf("Server: %s, no model loaded\n", health.Status)
		} else {
			fmt.Printf("Server: %s, active model: %s\n", health.Status, health.ModelID)
		}

	case "/run":
		if len(parts) < 2 {
			fmt.Println("Usage: /run <prompt>  (plain inference, no activations)")
			return nil
		}
		return c.plainRun(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/run")))

	case "/tokens":
		if len(parts) > 1 {
			n, err := strconv.Atoi(parts[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid token budget: %s", parts[1])
			}
			c.maxNewTokens = n
			fmt.Printf("Token budget set to %d\n", n)
		} else {
			fmt.Printf("Token budget: %d\n", c.maxNewTokens)
		}

	default:
		fmt.Printf("Unknown command: %s\n", cmd)
	}

	return nil
}

// handleTurn runs one streaming turn and renders its frames.
func (c *Console) handleTurn(prompt string) error {
	spin := spinner.New("generating...")
	spin.Start()

	turn, err := c.stream.RunTurn(prompt, c.maxNewTokens)
	if err != nil {
		spin.Fail("turn failed")
		return err
	}
	spin.Stop()

	RenderTurn(c.rl.Stdout(), turn)
	return nil
}

func (c *Console) plainRun(ctx context.Context, prompt string) error {
	spin := spinner.New("generating...")
	spin.Start()

	result, err := c.api.Run(ctx, prompt, c.maxNewTokens)
	if err != nil {
		spin.Fail("inference failed")
		return err
	}
	spin.Stop()

	fmt.Printf("\033[36m[%s]\033[0m %s\n\n", result.ModelID, result.GeneratedText)
	return nil
}

func (c *Console) loadModel(ctx context.Context, name string) error {
	spin := spinner.New(fmt.Sprintf("Loading %s...", name))
	spin.Start()

	action, err := c.api.LoadModel(ctx, name)
	if err != nil {
		spin.Fail(fmt.Sprintf("Failed to load %s", name))
		return err
	}
	spin.Success(action.Message)
	return nil
}

func (c *Console) printModels(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Models:")
	for _, m := range models {
		marker := " "
		if m.Loaded {
			marker = "\033[32m✓\033[0m"
		}
		shape := ""
		if m.Layers > 0 {
			shape = fmt.Sprintf(", %d layers x %d dims", m.Layers, m.DModel)
		}
		fmt.Printf("  %s %-18s %s%s\n", marker, m.ID, m.DisplayName, shape)
	}
	return nil
}

func (c *Console) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /models        - List registered models")
	fmt.Println("  /load <model>  - Load a model into the session")
	fmt.Println("  /unload <model> - Unload the active model")
	fmt.Println("  /health        - Show server status")
	fmt.Println("  /run <prompt>  - Plain inference without activations")
	fmt.Println("  /tokens [n]    - Show or set the generation budget")
	fmt.Println("  /quit          - Exit")
	fmt.Println()
	fmt.Println("Messages:")
	fmt.Println("  <text>         - Run a streaming turn with activation capture")
	fmt.Println()
	fmt.Println("Tip: Use Tab to autocomplete /commands and model names")
}
