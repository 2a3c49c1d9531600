package piper

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// event is one Wyoming protocol frame:
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>
type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func (e event) number(key string, def int) int {
	if v, ok := e.Data[key].(float64); ok {
		return int(v)
	}
	return def
}

func writeEvent(w io.Writer, e event, payload []byte) error {
	js, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d\n", len(js), len(payload))
	buf.Write(js)
	buf.WriteByte('\n')
	buf.Write(payload)
	_, err = w.Write(buf.Bytes())
	return err
}

func readEvent(r *bufio.Reader) (event, []byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return event{}, nil, fmt.Errorf("reading header: %w", err)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return event{}, nil, fmt.Errorf("invalid wyoming header %q", strings.TrimSpace(line))
	}
	jsonLen, err := strconv.Atoi(fields[0])
	if err != nil {
		return event{}, nil, fmt.Errorf("parsing json length: %w", err)
	}
	payloadLen, err := strconv.Atoi(fields[1])
	if err != nil {
		return event{}, nil, fmt.Errorf("parsing payload length: %w", err)
	}

	js := make([]byte, jsonLen+1)
	if _, err := io.ReadFull(r, js); err != nil {
		return event{}, nil, fmt.Errorf("reading json: %w", err)
	}
	var e event
	if err := json.Unmarshal(js[:jsonLen], &e); err != nil {
		return event{}, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return event{}, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return e, payload, nil
}

type wavHeader struct {
	Riff          [4]byte
	Size          uint32
	Wave          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	Format        uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// wav wraps little-endian PCM in a RIFF container.
func wav(pcm []byte, rate, channels, width int) []byte {
	h := wavHeader{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		Size:          uint32(36 + len(pcm)),
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		Format:        1,
		Channels:      uint16(channels),
		SampleRate:    uint32(rate),
		ByteRate:      uint32(rate * channels * width),
		BlockAlign:    uint16(channels * width),
		BitsPerSample: uint16(width * 8),
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	_ = binary.Write(&buf, binary.LittleEndian, h)
	buf.Write(pcm)
	return buf.Bytes()
}
