package sender

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
)

// SimulatedTransport writes each message as an HTML file instead of sending it.
type SimulatedTransport struct {
	Dir   string
	Clock engine.Clock
}

var fileNameReplacer = strings.NewReplacer("@", config.EmailAtReplace, "/", "_", `\`, "_")

// Deliver implements Transport.
func (t *SimulatedTransport) Deliver(_ context.Context, msg Message) (Delivery, error) {
	now := t.now()
	d := Delivery{
		To:        msg.To,
		Method:    config.DeliverySimulation,
		MessageID: uuid.NewString(),
		Error:     msg.Error,
		Timestamp: now,
	}

	dir := t.Dir
	if dir == "" {
		dir = config.DefaultSimulateDir
	}
	if err := os.MkdirAll(dir, config.DirPermUserRWX); err != nil {
		d.Status = config.StatusFailed
		return d, fmt.Errorf("%s: %w", config.ErrSimulateWrite, err)
	}

	name := fmt.Sprintf(config.FormatSimulatedFile, now.Format(config.SimulatedTimeLayout), fileNameReplacer.Replace(msg.To))
	path := filepath.Join(dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "<!-- Subject: %s -->\n", msg.Subject)
	fmt.Fprintf(&b, "<!-- To: %s -->\n", msg.To)
	fmt.Fprintf(&b, "<!-- Timestamp: %s -->\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "<!-- Message-ID: %s -->\n", d.MessageID)
	if msg.Error != "" {
		fmt.Fprintf(&b, "<!-- Error: %s -->\n", msg.Error)
	}
	b.WriteString(msg.HTML)

	if err := os.WriteFile(path, []byte(b.String()), config.FilePermUserRW); err != nil {
		d.Status = config.StatusFailed
		return d, fmt.Errorf("%s: %w", config.ErrSimulateWrite, err)
	}

	d.Status = config.StatusSimulated
	d.File = path
	return d, nil
}

func (t *SimulatedTransport) now() time.Time {
	if t.Clock == nil {
		return time.Now()
	}
	return t.Clock.Now()
}
