package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/snappy-loop/estampa/internal/config"
	"github.com/snappy-loop/estampa/internal/controller"
	"github.com/snappy-loop/estampa/internal/messages"
	"github.com/snappy-loop/estampa/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	generateOutput  string
	generateTimeout time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate one print from a prompt",
	Long: `Generate one square JPEG from a text prompt and write it to a file.

The prompt is taken from the arguments, or read from stdin when none are given.

Examples:
  estampa generate "tucano em aquarela, fundo branco"
  echo "padrão geométrico azul" | estampa generate -o azul.jpg`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "estampa.jpg", "Output file")
	generateCmd.Flags().DurationVar(&generateTimeout, "timeout", 0, "Give up after this long (default: wait indefinitely)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	raw := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		raw = string(data)
	}

	cfg := config.Load()
	msgs, err := messages.LoadFile(cfg.MessagesFile)
	if err != nil {
		return err
	}
	timeout := cfg.GenerationTimeout
	if generateTimeout > 0 {
		timeout = generateTimeout
	}

	gen, model := newGenerator(cfg)
	tr := newTerminalRenderer(cmd.ErrOrStderr())
	defer tr.stopSpinner()

	ctrl := controller.New(gen, msgs,
		controller.WithModel(model),
		controller.WithTimeout(timeout),
		controller.WithRenderer(tr.render),
	)
	defer ctrl.Close()

	if err := ctrl.Submit(cmd.Context(), raw); err != nil {
		var vErr *controller.ValidationError
		var gErr *controller.GenerationError
		switch {
		case errors.As(err, &vErr):
			return errors.New(vErr.Message)
		case errors.As(err, &gErr):
			return errors.New(gErr.Message)
		}
		return err
	}

	img, err := decodeDataURI(ctrl.View().ImageSrc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(generateOutput, img, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Image written to %s\n", generateOutput)
	return nil
}

// decodeDataURI returns the bytes of a base64 data URI.
func decodeDataURI(uri string) ([]byte, error) {
	const marker = ";base64,"
	i := strings.Index(uri, marker)
	if !strings.HasPrefix(uri, "data:") || i < 0 {
		return nil, fmt.Errorf("not a base64 data URI")
	}
	data, err := base64.StdEncoding.DecodeString(uri[i+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return data, nil
}

// terminalRenderer shows progress on a terminal: a spinner while busy on a
// TTY, a single line otherwise.
type terminalRenderer struct {
	w   io.Writer
	tty bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newTerminalRenderer(w io.Writer) *terminalRenderer {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &terminalRenderer{w: w, tty: tty}
}

// render only tracks busy state; error text reaches the user once, through
// the command's returned error.
func (t *terminalRenderer) render(v models.View) {
	if v.State == models.StateBusy {
		t.startSpinner()
		return
	}
	t.stopSpinner()
}

func (t *terminalRenderer) startSpinner() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tty {
		fmt.Fprintln(t.w, "Generating...")
		return
	}
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go func(stop, done chan struct{}) {
		defer close(done)
		frames := `|/-\`
		tick := time.NewTicker(120 * time.Millisecond)
		defer tick.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(t.w, "\r%c Generating...", frames[i%len(frames)])
			select {
			case <-stop:
				fmt.Fprint(t.w, "\r\033[K")
				return
			case <-tick.C:
			}
		}
	}(t.stop, t.done)
}

func (t *terminalRenderer) stopSpinner() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
}
