package transform

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	devicesKey  = "devices"
	messagesKey = "mensagens"
)

// LoadDevices reads a staged device directory payload. The file may be
// gzip-compressed or plain JSON (historical bulk exports are uncompressed).
func LoadDevices(path string) ([]Device, error) {
	var devices []Device
	if err := loadKey(path, devicesKey, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// LoadMessages reads a staged message payload, gzip or plain JSON.
func LoadMessages(path string) ([]Message, error) {
	var messages []Message
	if err := loadKey(path, messagesKey, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func loadKey(path, key string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r, err := maybeGunzip(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	raw, ok := payload[key]
	if !ok {
		return &SchemaMismatchError{Path: path, Key: key}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s key %q: %w", path, key, err)
	}
	return nil
}

// maybeGunzip sniffs the gzip magic bytes and wraps the reader accordingly.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		return nil, err
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}
