package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"lobby-autohost/hostproto"
)

// StreamReader decodes length-prefixed commands followed by typed argument chunks.
type StreamReader struct {
	r io.Reader
}

func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// ReadMessage reads one command with its chunks and decodes it through the message registry.
// A decoding error is returned together with the undecoded message.
func (f *StreamReader) ReadMessage() (hostproto.Message, error) {
	command, err := f.ReadString()
	if err != nil {
		return nil, err
	}

	chunks, err := f.ReadChunks()
	if err != nil {
		return nil, err
	}

	raw := &hostproto.BaseMessage{
		Command: command,
		Args:    chunks,
	}
	return raw.TryParse()
}

func (f *StreamReader) ReadChunks() ([]interface{}, error) {
	var numberOfChunks int32
	if err := binary.Read(f.r, binary.LittleEndian, &numberOfChunks); err != nil {
		return nil, fmt.Errorf("error reading number of chunks: %w", err)
	}

	if numberOfChunks < 0 || numberOfChunks > MaxChunkSize {
		return nil, fmt.Errorf("invalid number of chunks: %d", numberOfChunks)
	}

	chunks := make([]interface{}, 0, numberOfChunks)

	for i := 0; i < int(numberOfChunks); i++ {
		var fieldType FieldType
		if err := binary.Read(f.r, binary.LittleEndian, &fieldType); err != nil {
			return nil, fmt.Errorf("error reading field type: %w", err)
		}

		switch fieldType {
		case IntType:
			var val int32
			if err := binary.Read(f.r, binary.LittleEndian, &val); err != nil {
				return nil, fmt.Errorf("error reading int value: %w", err)
			}
			chunks = append(chunks, val)
		case StringType:
			s, err := f.ReadString()
			if err != nil {
				return nil, fmt.Errorf("error reading string: %w", err)
			}
			chunks = append(chunks, s)
		default:
			return nil, fmt.Errorf("unknown field type: %d", fieldType)
		}
	}

	return chunks, nil
}

func (f *StreamReader) ReadString() (string, error) {
	var size int32
	if err := binary.Read(f.r, binary.LittleEndian, &size); err != nil {
		return "", fmt.Errorf("error reading string length: %w", err)
	}

	if size < 0 || size > MaxStringLength {
		return "", fmt.Errorf("invalid string length: %d", size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return "", fmt.Errorf("error reading string bytes: %w", err)
	}

	return string(buf), nil
}
