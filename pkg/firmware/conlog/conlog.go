// Package conlog implements an apex/log handler that writes to the firmware console.
package conlog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/blacktop/go-efistub/pkg/firmware"
)

// Strings mapping.
var Strings = [...]string{
	log.DebugLevel: "•",
	log.InfoLevel:  "•",
	log.WarnLevel:  "•",
	log.ErrorLevel: "⨯",
	log.FatalLevel: "⨯",
}

// Handler implementation.
type Handler struct {
	mu       sync.Mutex
	console  firmware.Console
	detached bool
	Padding  int
}

// New handler writing to c.
func New(c firmware.Console) *Handler {
	return &Handler{
		console: c,
		Padding: 3,
	}
}

// Detach stops all further console output. It must be called before boot
// services are terminated, the console is unusable afterwards.
func (h *Handler) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = true
}

// Detached reports whether Detach was called.
func (h *Handler) Detached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detached
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.detached || h.console == nil {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%*s %-25s", h.Padding+1, Strings[e.Level], e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&sb, " %s=%v", name, e.Fields.Get(name))
	}

	return firmware.Println(h.console, sb.String())
}
