package conlog

import (
	"testing"

	"github.com/apex/log"
	"github.com/blacktop/go-efistub/pkg/firmware/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLog(t *testing.T) {
	m := fake.NewMachine(nil)
	h := New(m.Console)
	l := &log.Logger{Handler: h, Level: log.DebugLevel}

	l.WithField("pages", 0x200).Info("allocated image region")
	l.WithError(assert.AnError).Error("boot failed")

	require.Len(t, m.Console.Lines, 2)
	assert.Contains(t, m.Console.Lines[0], "allocated image region")
	assert.Contains(t, m.Console.Lines[0], "pages=512")
	assert.Contains(t, m.Console.Lines[1], "⨯")
	assert.Contains(t, m.Console.Lines[1], "error="+assert.AnError.Error())
}

func TestDetach(t *testing.T) {
	m := fake.NewMachine(nil)
	h := New(m.Console)
	l := &log.Logger{Handler: h, Level: log.InfoLevel}

	l.Info("before")
	h.Detach()
	assert.True(t, h.Detached())
	l.Info("after")

	require.Len(t, m.Console.Lines, 1)
	assert.Contains(t, m.Console.Lines[0], "before")
	assert.Equal(t, 2, m.Platform.Calls[fake.OpOutputString])
}
