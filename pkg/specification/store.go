package specification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

const zstdSuffix = ".zst"

// Load читает спецификацию из файла .json или .yaml/.yml, возможно сжатого zstd (.zst)
func Load(path string) (*Specification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read specification: %w", err)
	}
	name := path
	if strings.HasSuffix(name, zstdSuffix) {
		name = strings.TrimSuffix(name, zstdSuffix)
		if data, err = decompress(data); err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
		}
	}

	s := &Specification{}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, s)
	default:
		err = json.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}

// Save записывает спецификацию; формат выбирается по расширению как в Load
func Save(path string, s *Specification) error {
	name := strings.TrimSuffix(path, zstdSuffix)
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode specification: %w", err)
	}
	if name != path {
		if data, err = compress(data); err != nil {
			return fmt.Errorf("failed to compress specification: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write specification: %w", err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// Fingerprint возвращает хеш канонической формы маппинга.
// Маппинги с равными отпечатками экспортируют одинаковые данные.
func Fingerprint(e *Entry) uint64 {
	data, err := MarshalEntry(e)
	if err != nil {
		return 0
	}
	return xxh3.Hash(data)
}
