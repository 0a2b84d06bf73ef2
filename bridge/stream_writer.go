package bridge

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"lobby-autohost/applog"
	"lobby-autohost/hostproto"
	"sync"

	"go.uber.org/zap"
)

// StreamWriter is the encoding counterpart of StreamReader, safe for concurrent use.
type StreamWriter struct {
	w  *bufio.Writer
	mu sync.Mutex
}

func NewStreamWriter(w *bufio.Writer) *StreamWriter {
	return &StreamWriter{
		w: w,
	}
}

func (w *StreamWriter) writeString(s string) error {
	if err := binary.Write(w.w, binary.LittleEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := w.w.WriteString(s)
	return err
}

func (w *StreamWriter) writeArgs(args []interface{}) error {
	if len(args) > MaxChunkSize {
		return fmt.Errorf("too many arguments: %d", len(args))
	}

	if err := binary.Write(w.w, binary.LittleEndian, int32(len(args))); err != nil {
		return err
	}

	for index, arg := range args {
		switch v := arg.(type) {
		case int:
			_ = w.w.WriteByte(byte(IntType))
			_ = binary.Write(w.w, binary.LittleEndian, int32(v))
		case int32:
			_ = w.w.WriteByte(byte(IntType))
			_ = binary.Write(w.w, binary.LittleEndian, v)
		case uint32:
			_ = w.w.WriteByte(byte(IntType))
			_ = binary.Write(w.w, binary.LittleEndian, int32(v))
		case string:
			_ = w.w.WriteByte(byte(StringType))
			if err := w.writeString(v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected type %T in arguments (index %d)", v, index)
		}
	}
	return nil
}

func (w *StreamWriter) WriteMessage(message hostproto.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	applog.Debug("Writing message to bridge stream",
		zap.String("command", message.GetCommand()),
		zap.Any("args", message.GetArgs()),
	)

	if err := w.writeString(message.GetCommand()); err != nil {
		return err
	}
	if err := w.writeArgs(message.GetArgs()); err != nil {
		return err
	}

	return w.w.Flush()
}
