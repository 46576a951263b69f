package stream

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
)

func item(id int64) ir.IRObject {
	return ir.IRObject{"id": ir.IRInt(id)}
}

func TestBacklogFlushedOnSendTo(t *testing.T) {
	s := New()
	require.NoError(t, s.Item(item(1)))
	require.NoError(t, s.Item(item(2)))
	require.NoError(t, s.Done())

	c := Collect(s)
	assert.Equal(t, []EventType{TypeItem, TypeItem, TypeDone}, c.Types())
	assert.Equal(t, []ir.IRObject{item(1), item(2)}, c.Items())
	assert.True(t, c.Finished())
}

func TestDeliveryIsSynchronous(t *testing.T) {
	s := New()
	c := Collect(s)

	require.NoError(t, s.Item(item(1)))
	assert.Len(t, c.Events(), 1)
	assert.False(t, c.Finished())
}

func TestPutAfterCloseFails(t *testing.T) {
	s := New()
	c := Collect(s)
	require.NoError(t, s.Done())

	err := s.Item(item(1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, c.Events(), 1)
}

func TestBackpressureStopClosesStream(t *testing.T) {
	s := New()
	var got int
	require.NoError(t, s.SendTo(func(evt Event) error {
		got++
		return ErrBackpressureStop
	}))

	err := s.Item(item(1))
	assert.ErrorIs(t, err, ErrBackpressureStop)
	assert.True(t, s.IsClosed())
	assert.ErrorIs(t, s.Item(item(2)), ErrClosed)
	assert.Equal(t, 1, got)
}

func TestSendToTwice(t *testing.T) {
	s := New()
	require.NoError(t, s.SendTo(func(Event) error { return nil }))
	assert.ErrorIs(t, s.SendTo(func(Event) error { return nil }), ErrAlreadyReceiving)
}

func TestOnCloseFires(t *testing.T) {
	s := New()
	closed := 0
	s.OnClose(func() { closed++ })
	Collect(s)

	require.NoError(t, s.Done())
	assert.Equal(t, 1, closed)
}

func TestMapTransformsAndFilters(t *testing.T) {
	src := New()
	dst := Map(src, func(evt Event) (Event, bool) {
		if evt.Type == TypeItem && evt.Item["id"] == ir.IRInt(2) {
			return evt, false
		}
		return evt, true
	})
	c := Collect(dst)

	require.NoError(t, src.Item(item(1)))
	require.NoError(t, src.Item(item(2)))
	require.NoError(t, src.Done())

	assert.Equal(t, []ir.IRObject{item(1)}, c.Items())
	assert.True(t, c.Finished())
}

func TestMapPropagatesBackpressure(t *testing.T) {
	src := New()
	dst := MapItems(src, func(obj ir.IRObject) ir.IRObject { return obj })
	require.NoError(t, dst.SendTo(func(Event) error { return ErrBackpressureStop }))

	err := src.Item(item(1))
	assert.ErrorIs(t, err, ErrBackpressureStop)
	assert.True(t, src.IsClosed())
}

func TestFromItemsAndFailed(t *testing.T) {
	c := Collect(FromItems(item(1)))
	assert.Equal(t, []EventType{TypeItem, TypeDone}, c.Types())

	c = Collect(Failed(NewErrorDetails(ErrTypeNoHandlerFound, "no handler for %q", "a b")))
	require.NotNil(t, c.Err())
	assert.Equal(t, ErrTypeNoHandlerFound, c.Err().ErrorType)
	assert.Equal(t, `no_handler_found: no handler for "a b"`, c.Err().Error())
}

func TestToErrorDetails(t *testing.T) {
	details := NewErrorDetails(ErrTypeMissingParameter, "missing x")
	wrapped := errors.Join(errors.New("outer"), details)
	assert.Same(t, details, ToErrorDetails(wrapped))

	plain := ToErrorDetails(errors.New("boom"))
	assert.Equal(t, ErrTypeHandlerError, plain.ErrorType)
	assert.Equal(t, "boom", plain.ErrorMessage)
}

func TestEventJSON(t *testing.T) {
	tests := []struct {
		name string
		evt  Event
		want string
	}{
		{"item", Item(item(1)), `{"item":{"id":1},"t":"item"}`},
		{"done", Done(), `{"t":"done"}`},
		{"restart", Restart(), `{"t":"restart"}`},
		{"delta", Delta("delete(b)", ir.IRInt(3)), `{"func":"delete(b)","params":[3],"t":"delta"}`},
		{"schema", Schema(SchemaInfo{Funcs: []string{"delete(b)"}}), `{"schema":{"funcs":["delete(b)"]},"t":"schema"}`},
		{
			"fail",
			Fail(NewErrorDetails(ErrTypeMissingParameter, "x").WithRelated(ir.IRObject{"attr": ir.IRString("x")})),
			`{"error":{"errorMessage":"x","errorType":"missing_parameter","related":[{"attr":"x"}]},"t":"fail"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.evt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))

			var back Event
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.want, ir.MustCanonical(back.ToIR()))
		})
	}
}

func TestEventFromIRRejectsUnknownType(t *testing.T) {
	_, err := EventFromIR(ir.IRObject{"t": ir.IRString("bogus")})
	require.Error(t, err)
}
