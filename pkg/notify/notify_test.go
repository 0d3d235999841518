package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellroute/pkg/types"
)

func TestNew_AssignsIDAndType(t *testing.T) {
	tx := common.HexToHash("0x01")
	a := New(types.StatusError, "Swap failed", "Rollback", tx)
	b := New(types.StatusSuccess, "Swap complete", "", tx)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, TypeError, a.Type)
	assert.Equal(t, TypeSuccess, b.Type)
	assert.Equal(t, TypePending, TypeFor(types.StatusPending))
	assert.Equal(t, tx, a.TxHash)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))
	n.Notify(context.Background(), New(types.StatusError, "Swap failed", "Rollback on hop 1", common.HexToHash("0x02")))

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"message":"Swap failed"`)
	assert.Contains(t, out, `"body":"Rollback on hop 1"`)
	assert.Contains(t, out, `"status":"error"`)
}

func TestConsoleNotifier(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	NewConsoleNotifier(&buf).Notify(context.Background(), New(types.StatusSuccess, "Swap complete", "received 10 USDC", common.HexToHash("0x03")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "SUCCESS Swap complete"))
	assert.Contains(t, lines[1], "received 10 USDC")
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, nil, &b}
	m.Notify(context.Background(), New(types.StatusPending, "Hop 1 confirmed", "", common.Hash{}))

	require.Len(t, a.Sent(), 1)
	require.Len(t, b.Sent(), 1)
	assert.Equal(t, a.Sent()[0].ID, b.Sent()[0].ID)
}
