package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConn_EnqueueAndClose(t *testing.T) {
	conn := NewConn(1, nil)
	assert.NotEmpty(t, conn.ID())
	_, staff := conn.AdminID()
	assert.False(t, staff)

	assert.True(t, conn.Enqueue([]byte("a")))
	assert.False(t, conn.Enqueue([]byte("b")), "full buffer")

	conn.Close()
	conn.Close()
	assert.True(t, conn.Closed())
	assert.False(t, conn.Enqueue([]byte("c")))

	got, ok := <-conn.Outbound()
	assert.True(t, ok)
	assert.Equal(t, "a", string(got))
	_, ok = <-conn.Outbound()
	assert.False(t, ok)
}

func TestConn_AdminID(t *testing.T) {
	conn := adminConn(0, 4)
	id, ok := conn.AdminID()
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)
}
